package main

import (
	"fmt"

	"github.com/alecthomas/kingpin/v2"
	"github.com/apache/arrow-go/v18/arrow"
	"github.com/dustin/go-humanize"
	"github.com/fatih/color"

	"github.com/grafana/protarrow/pkg/protarrow"
)

// statsCommand prints conversion stats for each file.
type statsCommand struct {
	in    *inputFlags
	files *[]string
}

func (cmd *statsCommand) run(_ *kingpin.ParseContext) error {
	h, err := cmd.in.handler()
	if err != nil {
		exitWithErr(err)
	}

	bold := color.New(color.Bold)
	bold.Println("Schema:")
	fmt.Printf("\tmessage: %s, columns: %d\n", h.Name(), len(h.ArrowSchema().Fields()))
	for _, f := range h.Schema().Fields() {
		fmt.Printf("\t\t%s -> %s\n", f, protarrow.ArrowType(f.Kind))
	}

	for _, f := range *cmd.files {
		cmd.printStats(h, f)
	}

	stats := h.Stats()
	bold.Println("Total:")
	fmt.Printf("\tbatches: %d, messages: %s\n", stats.Batches, humanize.Comma(stats.Messages))
	return nil
}

func (cmd *statsCommand) printStats(h *protarrow.Handler, name string) {
	t, size, err := cmd.in.convert(h, name)
	if err != nil {
		exitWithErr(err)
	}
	defer t.Release()

	var total uint64
	for _, c := range t.Columns() {
		total += arraySize(c.Array())
	}

	bold := color.New(color.Bold)
	bold.Printf("File %s:\n", name)
	fmt.Printf(
		"\tinput size: %v, rows: %s, columnar size: %v\n",
		humanize.Bytes(uint64(size)),
		humanize.Comma(int64(t.NumRows())),
		humanize.Bytes(total),
	)
	for _, c := range t.Columns() {
		fmt.Printf(
			"\t\tname: %s, number: %d, kind: %s, type: %v, size: %v\n",
			c.Name(),
			c.Field().Number,
			c.Kind(),
			c.Array().DataType(),
			humanize.Bytes(arraySize(c.Array())),
		)
	}
}

// arraySize returns the number of bytes held by the buffers of arr.
func arraySize(arr arrow.Array) uint64 {
	var n uint64
	for _, buf := range arr.Data().Buffers() {
		if buf != nil {
			n += uint64(buf.Len())
		}
	}
	return n
}

func addStatsCommand(app *kingpin.Application, in *inputFlags) {
	cmd := &statsCommand{in: in}
	stats := app.Command("stats", "Print conversion stats for each file.").Action(cmd.run)
	cmd.files = stats.Arg("file", "The files to convert.").Required().ExistingFiles()
}
