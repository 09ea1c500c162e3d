package vcpu

import (
	"bufio"
	"fmt"
	"io"
	"log"
	"maps"
	"regexp"
	"slices"
	"strconv"
	"strings"

	"go.starlark.net/starlark"
	"go.starlark.net/syntax"
)

// Predefined system equates
var sysEquate = map[string]string{
	"LINENO":     "0",
	"MAGIC_STOP": fmt.Sprintf("%#v", int(MAGIC_STOP)),
}

// Line is one assembled source line: the mnemonic and operands it was
// written as, and the bytecode words it produced.
type Line struct {
	LineNo int
	Words  []string
	Codes  []Word
}

// Program is the output of the assembler.
type Program struct {
	Lines []Line
}

// Binary flattens the program into a loadable bytecode stream.
func (prog *Program) Binary() (words []Word) {
	for _, line := range prog.Lines {
		words = append(words, line.Codes...)
	}

	return
}

// Assembler is a single pass assembler for stax bytecode. Mnemonics are
// resolved to raw table slots through the Slots map, which the owner
// fills with the values returned by instruction registration; the
// assembled bytecode is therefore tied to one table size and hash
// outcome, exactly like hand-written opcodes.
type Assembler struct {
	Verbose bool            // If set, verbosely logs the assembler actions.
	Slots   map[string]Word // Mnemonic to table slot mapping.

	predefine map[string]string // Predefines
	Equate    map[string]string // Map of equates.
}

// Predefine defines a new equate or redefines an existing equate.
func (asm *Assembler) Predefine(equ string, value string) {
	if asm.predefine == nil {
		asm.predefine = map[string]string{equ: value}
	} else {
		asm.predefine[equ] = value
	}
}

// valueOf returns the value of a simple word.
func (asm *Assembler) valueOf(word string) (value Word, err error) {
	if word[0] == '\'' {
		// Character quotes should have been expanded into
		// values in parseLine()
		err = ErrParseNumber(word)
		return
	}
	v64, err := strconv.ParseInt(word, 0, 64)
	if err != nil {
		err = ErrParseNumber(word)
		return
	}

	value = Word(v64)

	return
}

// parenEval does compile-time $(...) evaluations
func (asm *Assembler) parenEval(expr string) (value Word, err error) {
	thread := starlark.Thread{}
	opts := syntax.FileOptions{}
	pred := starlark.StringDict{}
	for key, str := range asm.Equate {
		var wv Word
		wv, err = asm.valueOf(str)
		if err != nil {
			// Ignore non-integer equates.
			continue
		}
		pred[key] = starlark.MakeInt(int(wv))
	}
	err = nil
	prog := "rc=" + expr + "\n"
	dict, err := starlark.ExecFileOptions(&opts, &thread, "expr", prog, pred)
	if err != nil {
		return
	}
	st_rc, ok := dict["rc"]
	if !ok {
		err = ErrParseExpression(expr)
		return
	}
	st_int, ok := st_rc.(starlark.Int)
	if !ok {
		err = ErrParseExpression(expr)
		return
	}
	st_int64, ok := st_int.Int64()
	if !ok {
		err = ErrParseExpression(expr)
		return
	}
	value = Word(st_int64)
	return
}

// parseLine expands a single source line into bare words.
func (asm *Assembler) parseLine(line string, lineno int) (words []string, err error) {
	// Set line number.
	asm.Equate["LINENO"] = fmt.Sprintf("%v", lineno)

	// Do 'x' evaluations
	re := regexp.MustCompile(`'\\?[^']'`)
	line = re.ReplaceAllStringFunc(line, func(word string) string {
		str := word[1 : len(word)-1]
		if str[0] == '\\' {
			str = str[1:]
			switch str {
			case "\\":
				str = "\\"
			case "n":
				str = "\n"
			case "r":
				str = "\r"
			case "e":
				str = "\033"
			default:
				return word
			}
		} else if len(str) != 1 {
			return word
		}
		return fmt.Sprintf("%v", str[0])
	})

	// Do $() evaluations
	re = regexp.MustCompile(`\$\([^\$]*\)`)
	line = re.ReplaceAllStringFunc(line, func(str string) string {
		value, _err := asm.parenEval(str[2 : len(str)-1])
		if _err != nil {
			err = _err
		}
		return fmt.Sprintf("%#v", int(value))
	})
	if err != nil {
		return
	}

	words = slices.DeleteFunc(strings.Split(line, " "), func(a string) bool { return len(a) == 0 })

	if len(words) == 0 {
		return
	}

	// .equ CONST VALUE
	if words[0] == ".equ" {
		if len(words) != 3 {
			err = ErrEquateSyntax
			return
		}
		_, ok := asm.Equate[words[1]]
		if ok {
			err = ErrEquateDuplicate
			return
		}
		asm.Equate[words[1]] = words[2]
		words = words[:0]
		return
	}

	for n, word := range words {
		equate, ok := asm.Equate[word]
		if ok {
			words[n] = equate
		}
	}

	return
}

// parseWords turns the words of one line into bytecode.
func (asm *Assembler) parseWords(words []string, lineno int) (codes []Word, err error) {
	if len(words) == 0 {
		return
	}

	var op Word
	switch {
	case words[0] == "stop":
		op = MAGIC_STOP
	default:
		var ok bool
		op, ok = asm.Slots[words[0]]
		if !ok {
			// Not a mnemonic; a bare value is emitted as-is, the way
			// hand-built bytecode may carry inert words.
			op, err = asm.valueOf(words[0])
			if err != nil {
				err = ErrOpcodeUnknown
				return
			}
		}
	}
	codes = append(codes, op)

	for _, word := range words[1:] {
		var value Word
		value, err = asm.valueOf(word)
		if err != nil {
			return
		}
		codes = append(codes, value)
	}

	return
}

// Parse assembles an input stream into a Program.
func (asm *Assembler) Parse(input io.Reader) (prog *Program, err error) {
	scanner := bufio.NewScanner(input)

	var line string
	var lineno int

	defer func() {
		if err != nil {
			err = &ErrSyntax{LineNo: lineno, Line: line, Err: err}
		}
	}()

	asm.Equate = maps.Clone(sysEquate)
	for attr, val := range asm.predefine {
		asm.Equate[attr] = val
	}

	prog = &Program{}

	for scanner.Scan() {
		text := scanner.Text()
		lineno += 1

		if asm.Verbose {
			log.Printf("%v: %v", lineno, text)
		}

		text_comment := strings.Split(text, ";")
		line = strings.TrimSpace(text_comment[0])

		var words []string
		words, err = asm.parseLine(line, lineno)
		if err != nil {
			prog = nil
			return
		}

		var codes []Word
		codes, err = asm.parseWords(words, lineno)
		if err != nil {
			prog = nil
			return
		}

		if len(codes) == 0 {
			continue
		}

		prog.Lines = append(prog.Lines, Line{LineNo: lineno, Words: words, Codes: codes})
	}

	return
}
