package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/alecthomas/kingpin/v2"
	"github.com/fatih/color"

	"github.com/grafana/protarrow/pkg/protarrow"
)

// tableCommand prints the rows converted from each file.
type tableCommand struct {
	in    *inputFlags
	files *[]string
	limit *int
}

func (cmd *tableCommand) run(_ *kingpin.ParseContext) error {
	h, err := cmd.in.handler()
	if err != nil {
		exitWithErr(err)
	}
	for _, f := range *cmd.files {
		cmd.printTable(h, f)
	}
	return nil
}

func (cmd *tableCommand) printTable(h *protarrow.Handler, name string) {
	t, _, err := cmd.in.convert(h, name)
	if err != nil {
		exitWithErr(err)
	}
	defer t.Release()

	bold := color.New(color.Bold)
	bold.Printf("%s: %s, %d rows\n", name, h.Name(), t.NumRows())

	tw := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	for _, c := range t.Columns() {
		fmt.Fprintf(tw, "%s\t", c.Name())
	}
	fmt.Fprintln(tw)

	rows := t.NumRows()
	if *cmd.limit > 0 && rows > *cmd.limit {
		rows = *cmd.limit
	}
	for i := 0; i < rows; i++ {
		for _, c := range t.Columns() {
			fmt.Fprintf(tw, "%s\t", formatValue(c.Value(i)))
		}
		fmt.Fprintln(tw)
	}
	_ = tw.Flush()

	if rows < t.NumRows() {
		color.New(color.Faint).Printf("... %d more rows\n", t.NumRows()-rows)
	}
}

func formatValue(v any) string {
	switch v := v.(type) {
	case []byte:
		return fmt.Sprintf("0x%x", v)
	case string:
		return fmt.Sprintf("%q", v)
	default:
		return fmt.Sprint(v)
	}
}

func addTableCommand(app *kingpin.Application, in *inputFlags) {
	cmd := &tableCommand{in: in}
	table := app.Command("table", "Print the table converted from each file.").Action(cmd.run)
	cmd.limit = table.Flag("limit", "Maximum number of rows to print per file. 0 prints every row.").Default("20").Int()
	cmd.files = table.Arg("file", "The files to convert.").Required().ExistingFiles()
}
