package main

import (
	"fmt"
	"os"

	"github.com/alecthomas/kingpin/v2"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/dustin/go-humanize"

	"github.com/grafana/protarrow/pkg/protarrow/export"
)

// exportCommand converts one file and writes the table in a columnar format.
type exportCommand struct {
	in     *inputFlags
	file   *string
	output *string
	format *string
}

func (cmd *exportCommand) run(_ *kingpin.ParseContext) error {
	format, err := export.ParseFormat(*cmd.format)
	if err != nil {
		exitWithErr(err)
	}
	h, err := cmd.in.handler()
	if err != nil {
		exitWithErr(err)
	}
	t, _, err := cmd.in.convert(h, *cmd.file)
	if err != nil {
		exitWithErr(err)
	}
	defer t.Release()

	f, err := os.Create(*cmd.output)
	if err != nil {
		exitWithErr(fmt.Errorf("failed to create output file: %w", err))
	}
	if err := export.Write(f, format, t, memory.DefaultAllocator); err != nil {
		_ = f.Close()
		exitWithErr(fmt.Errorf("failed to export %s: %w", *cmd.file, err))
	}
	if err := f.Close(); err != nil {
		exitWithErr(err)
	}

	fi, err := os.Stat(*cmd.output)
	if err != nil {
		exitWithErr(err)
	}
	fmt.Printf("wrote %d rows to %s (%s, %v)\n", t.NumRows(), *cmd.output, format, humanize.Bytes(uint64(fi.Size())))
	return nil
}

func addExportCommand(app *kingpin.Application, in *inputFlags) {
	cmd := &exportCommand{in: in}
	formats := make([]string, len(export.Formats))
	for i, f := range export.Formats {
		formats[i] = f.String()
	}

	exp := app.Command("export", "Convert a file and write the table in a columnar format.").Action(cmd.run)
	cmd.format = exp.Flag("output-format", "The output format.").Default(export.FormatParquet.String()).Enum(formats...)
	cmd.output = exp.Flag("output", "The output file.").Short('o').Required().String()
	cmd.file = exp.Arg("file", "The file to convert.").Required().ExistingFile()
}
