package main

import (
	"os"

	"github.com/bundleminer/bundleminer/cmd/bundleminer"
	"github.com/ordishs/gocore"
)

// Name used by build script for the binaries. (Please keep on single line)
const progname = "bundleminer"

// Version & commit strings injected at build with -ldflags -X...
var version string
var commit string

func init() {
	gocore.SetInfo(progname, version, commit)
}

func main() {
	bundleminer.Start(os.Args, version, commit)
}
