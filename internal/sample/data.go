package sample

import (
	"fmt"
	"path"
	"regexp"
	"strings"

	"github.com/go-viper/mapstructure/v2"
)

// Kind names a sequencing data layout in sample sheets.
type Kind string

const (
	KindSingleEndFASTQ Kind = "single_end_fastq"
	KindPairedEndFASTQ Kind = "paired_end_fastq"
	KindSpring         Kind = "spring"
	KindUBAM           Kind = "ubam"
	KindUCRAM          Kind = "ucram"
)

// kinds lists every layout in the order used when a sheet entry has no
// explicit type.
var kinds = []Kind{KindSingleEndFASTQ, KindPairedEndFASTQ, KindSpring, KindUBAM, KindUCRAM}

var (
	fastqPattern  = regexp.MustCompile(`\.(fastq|fq)(\.gz)?$`)
	springPattern = regexp.MustCompile(`\.spring$`)
	bamPattern    = regexp.MustCompile(`\.bam$`)
	cramPattern   = regexp.MustCompile(`\.cram$`)
)

// Run describes one sequencing run of a library.
type Run struct {
	Library    string `mapstructure:"library" yaml:"library"`
	Technology string `mapstructure:"technology" yaml:"technology"`
	Instrument string `mapstructure:"instrument" yaml:"instrument"`
	Flowcell   string `mapstructure:"flowcell" yaml:"flowcell"`
	Lane       string `mapstructure:"lane" yaml:"lane"`
}

// Data is one sequencing data entry of a sample.
type Data interface {
	Kind() Kind
	RunInfo() Run
	Files() []string
	Validate() error
}

type SingleEndFASTQ struct {
	Run  `mapstructure:",squash" yaml:",inline"`
	File string `mapstructure:"file" yaml:"file"`
}

type PairedEndFASTQ struct {
	Run `mapstructure:",squash" yaml:",inline"`
	R1  string `mapstructure:"r1" yaml:"r1"`
	R2  string `mapstructure:"r2" yaml:"r2"`
}

type Spring struct {
	Run      `mapstructure:",squash" yaml:",inline"`
	Archives []string `mapstructure:"files" yaml:"files"`
}

// UBAM is an unmapped BAM file.
type UBAM struct {
	Run  `mapstructure:",squash" yaml:",inline"`
	File string `mapstructure:"file" yaml:"file"`
}

// UCRAM is an unmapped CRAM file.
type UCRAM struct {
	Run  `mapstructure:",squash" yaml:",inline"`
	File string `mapstructure:"file" yaml:"file"`
}

func (d *SingleEndFASTQ) Kind() Kind { return KindSingleEndFASTQ }
func (d *PairedEndFASTQ) Kind() Kind { return KindPairedEndFASTQ }
func (d *Spring) Kind() Kind         { return KindSpring }
func (d *UBAM) Kind() Kind           { return KindUBAM }
func (d *UCRAM) Kind() Kind          { return KindUCRAM }

func (d *SingleEndFASTQ) RunInfo() Run { return d.Run }
func (d *PairedEndFASTQ) RunInfo() Run { return d.Run }
func (d *Spring) RunInfo() Run         { return d.Run }
func (d *UBAM) RunInfo() Run           { return d.Run }
func (d *UCRAM) RunInfo() Run          { return d.Run }

func (d *SingleEndFASTQ) Files() []string { return []string{d.File} }
func (d *PairedEndFASTQ) Files() []string { return []string{d.R1, d.R2} }
func (d *Spring) Files() []string         { return append([]string(nil), d.Archives...) }
func (d *UBAM) Files() []string           { return []string{d.File} }
func (d *UCRAM) Files() []string          { return []string{d.File} }

func (d *SingleEndFASTQ) Validate() error {
	return checkExt("FASTQ file", d.File, fastqPattern, ".fastq, .fastq.gz, .fq or .fq.gz")
}

func (d *PairedEndFASTQ) Validate() error {
	if err := checkExt("FASTQ r1 file", d.R1, fastqPattern, ".fastq, .fastq.gz, .fq or .fq.gz"); err != nil {
		return err
	}
	return checkExt("FASTQ r2 file", d.R2, fastqPattern, ".fastq, .fastq.gz, .fq or .fq.gz")
}

func (d *Spring) Validate() error {
	if len(d.Archives) == 0 {
		return fmt.Errorf("%w: spring files list cannot be empty", ErrInvalidSample)
	}
	for _, f := range d.Archives {
		if err := checkExt("Spring file", f, springPattern, ".spring"); err != nil {
			return err
		}
	}
	return nil
}

func (d *UBAM) Validate() error {
	return checkExt("unmapped BAM file", d.File, bamPattern, ".bam")
}

func (d *UCRAM) Validate() error {
	return checkExt("unmapped CRAM file", d.File, cramPattern, ".cram")
}

func checkExt(what, file string, re *regexp.Regexp, want string) error {
	if !re.MatchString(strings.ToLower(path.Base(file))) {
		return fmt.Errorf("%w: %s must have %s extension, got %q", ErrInvalidSample, what, want, file)
	}
	return nil
}

func newData(k Kind) Data {
	switch k {
	case KindSingleEndFASTQ:
		return &SingleEndFASTQ{}
	case KindPairedEndFASTQ:
		return &PairedEndFASTQ{}
	case KindSpring:
		return &Spring{}
	case KindUBAM:
		return &UBAM{}
	case KindUCRAM:
		return &UCRAM{}
	default:
		return nil
	}
}

// DecodeData converts a sheet entry into Data.
//
// An entry with a known "type" is decoded as that layout. Otherwise every
// layout whose fields match the entry exactly is tried in turn and the first
// one that validates wins.
func DecodeData(raw map[string]any) (Data, error) {
	if t, ok := raw["type"].(string); ok {
		if d := newData(Kind(t)); d != nil {
			fields := make(map[string]any, len(raw)-1)
			for k, v := range raw {
				if k != "type" {
					fields[k] = v
				}
			}
			if err := decodeStrict(fields, d); err != nil {
				return nil, fmt.Errorf("%w: %s entry: %v", ErrInvalidSample, t, err)
			}
			if err := d.Validate(); err != nil {
				return nil, err
			}
			return d, nil
		}
	}

	var firstErr error
	for _, k := range kinds {
		d := newData(k)
		if err := decodeStrict(raw, d); err != nil {
			continue
		}
		if err := d.Validate(); err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		return d, nil
	}
	if firstErr != nil {
		return nil, firstErr
	}
	return nil, fmt.Errorf("%w: could not determine sequencing data type for %v", ErrInvalidSample, raw)
}

func decodeStrict(raw map[string]any, out Data) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           out,
		ErrorUnused:      true,
		ErrorUnset:       true,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return err
	}
	return dec.Decode(raw)
}
