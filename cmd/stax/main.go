package main

import (
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"strings"

	"github.com/ezrec/stax/machine"
	"github.com/ezrec/stax/vcpu"
)

// sample is the built-in demonstration program: open stdout as a file
// descriptor block, write a greeting through it, and halt.
const sample = `; stax sample program
OPENFD 1
WRITEFD 3 'A' 'B' '\n'
stop
`

func main() {
	var compile string
	var verbose bool
	var memory bool
	var pool int

	flag.StringVar(&compile, "c", "", ".sx file to assemble and run")
	flag.BoolVar(&verbose, "v", false, "Verbose mode")
	flag.BoolVar(&memory, "m", true, "Allow memory allocation")
	flag.IntVar(&pool, "p", 0, "Max memory allocation pool in cells (zero or negative disables)")

	flag.Parse()

	if flag.NArg() != 0 {
		log.Fatalf("%v: Unknown arguments: %v", os.Args[0], flag.Args())
	}

	m, err := machine.NewMachine(vcpu.Settings{
		AllowMemoryAllocation:   memory,
		MaxMemoryAllocationPool: pool,
		Silent:                  !verbose,
	})
	if err != nil {
		log.Fatal(err)
	}

	name := "(sample)"
	var input io.Reader = strings.NewReader(sample)
	if len(compile) != 0 {
		inf, err := os.Open(compile)
		if err != nil {
			log.Fatalf("%v: %v", compile, err)
		}
		defer inf.Close()
		input = inf
		name = compile
	}

	prog, err := m.Assemble(input)
	if err != nil {
		log.Fatalf("%v: %v", name, err)
	}

	m.LoadProgram(prog)

	if err := m.Run(); err != nil {
		log.Fatal(err)
	}

	if code, ok := m.LastFault(); ok {
		meaning, known := vcpu.DescribeFault(code)
		if !known {
			meaning = "unregistered fault"
		}
		log.Printf("stax: last fault: %d (%v)", code, meaning)
	}

	fmt.Printf("allocated blocks: %d\n", m.Blocks())
	fmt.Printf("memory in use: %d cells\n", m.MemoryInUse())

	if err := m.Close(); err != nil {
		log.Fatal(err)
	}
}
