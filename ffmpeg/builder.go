package ffmpeg

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Input is one -i source with the options that precede it
type Input struct {
	Path    string
	Options []string
}

// Builder assembles an ffmpeg argv. Every argument stays a separate entry,
// so nothing in it is ever interpreted by a shell.
type Builder struct {
	global  []string
	inputs  []Input
	filters []string
	maps    []string
	outOpts []string
	output  string
}

// NewBuilder starts a command that overwrites its output
func NewBuilder() *Builder {
	return &Builder{global: []string{"-hide_banner", "-y"}}
}

// Global adds options placed before the inputs
func (b *Builder) Global(opts ...string) *Builder {
	b.global = append(b.global, opts...)
	return b
}

// Input adds a source and returns its input index
func (b *Builder) Input(path string, opts ...string) int {
	b.inputs = append(b.inputs, Input{Path: path, Options: opts})
	return len(b.inputs) - 1
}

// Filter appends one filter chain to -filter_complex
func (b *Builder) Filter(chain string) *Builder {
	b.filters = append(b.filters, chain)
	return b
}

// Map selects an output stream, e.g. "[final_v]" or "3:a"
func (b *Builder) Map(spec string) *Builder {
	b.maps = append(b.maps, spec)
	return b
}

// Option adds an output option pair or flag
func (b *Builder) Option(opts ...string) *Builder {
	b.outOpts = append(b.outOpts, opts...)
	return b
}

// Duration limits the output length
func (b *Builder) Duration(sec float64) *Builder {
	return b.Option("-t", strconv.FormatFloat(sec, 'f', 3, 64))
}

// Output sets the output file
func (b *Builder) Output(path string) *Builder {
	b.output = path
	return b
}

// Inputs returns the number of inputs added so far
func (b *Builder) Inputs() int {
	return len(b.inputs)
}

// FilterGraph returns the joined -filter_complex value
func (b *Builder) FilterGraph() string {
	return strings.Join(b.filters, ";")
}

// Args validates the command and returns the argv without the program name
func (b *Builder) Args() ([]string, error) {
	if len(b.inputs) == 0 {
		return nil, errors.New("ffmpeg: no inputs")
	}
	if b.output == "" {
		return nil, errors.New("ffmpeg: no output")
	}
	args := append([]string{}, b.global...)
	for i, in := range b.inputs {
		if in.Path == "" {
			return nil, fmt.Errorf("ffmpeg: input %d has no path", i)
		}
		args = append(args, in.Options...)
		args = append(args, "-i", in.Path)
	}
	if len(b.filters) > 0 {
		args = append(args, "-filter_complex", b.FilterGraph())
	}
	for _, m := range b.maps {
		args = append(args, "-map", m)
	}
	args = append(args, b.outOpts...)
	args = append(args, b.output)

	for _, a := range args {
		if strings.ContainsAny(a, "\x00\n\r") {
			return nil, fmt.Errorf("ffmpeg: argument contains control characters: %q", a)
		}
	}
	return args, nil
}
