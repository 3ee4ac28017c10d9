package main

import (
	"fmt"
	"os"

	"github.com/alecthomas/kingpin/v2"
)

func main() {
	app := kingpin.New("protarrow-inspect", "A command-line tool to convert batches of serialized protobuf messages into columnar tables.")
	in := addInputFlags(app)
	addTableCommand(app, in)
	addStatsCommand(app, in)
	addExportCommand(app, in)

	kingpin.MustParse(app.Parse(os.Args[1:]))
}

func exitWithErr(err error) {
	fmt.Fprintln(os.Stderr, err.Error())
	os.Exit(1)
}
