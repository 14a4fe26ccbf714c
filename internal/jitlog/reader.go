package jitlog

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"

	"jitmanifest/internal/diag"
)

// Profiler lines carry nested type arguments and can grow past bufio's default buffer.
// Longer lines are skipped.
var maxLineSize = 16 << 20

// LogSet names the three log files of one profiling run.
type LogSet struct {
	JIT      string
	Modules  string
	Metadata string
}

// Logs is the parsed content of a LogSet.
type Logs struct {
	// Compiled holds the JIT-compiled FunctionIDs in first-seen order, without duplicates.
	Compiled []uint64
	Modules  map[uint64]*Module
	Metadata map[uint64]*MethodMetadata
}

// Read parses the three logs. Problems with one file or one line are reported to bag
// and never stop the others from being read.
func Read(set LogSet, bag *diag.Bag) *Logs {
	logs := &Logs{
		Modules:  map[uint64]*Module{},
		Metadata: map[uint64]*MethodMetadata{},
	}

	readLog(set.Modules, "Modules", bag, func(m Module) {
		logs.Modules[m.ModuleID] = &m
	})
	readLog(set.Metadata, "Enter3", bag, func(m MethodMetadata) {
		logs.Metadata[m.FunctionID] = &m
	})

	seen := map[uint64]bool{}
	readLog(set.JIT, "JIT", bag, func(m CompiledMethod) {
		if !seen[m.FunctionID] {
			seen[m.FunctionID] = true
			logs.Compiled = append(logs.Compiled, m.FunctionID)
		}
	})

	return logs
}

// Requests returns the metadata event of every compiled function in compile order and
// reports the functions the metadata log does not know about.
func (l *Logs) Requests(bag *diag.Bag) []*MethodMetadata {
	requests := make([]*MethodMetadata, 0, len(l.Compiled))
	for _, id := range l.Compiled {
		metadata, found := l.Metadata[id]
		if !found {
			bag.Addf(diag.KindCorrelation, "FunctionID 0x%X from JIT log not found in metadata log", id)
			continue
		}
		requests = append(requests, metadata)
	}
	return requests
}

func readLog[T any](path, description string, bag *diag.Bag, apply func(T)) {
	file, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		bag.Addf(diag.KindInput, "%s file not found: %s", description, path)
		return
	}
	if err != nil {
		bag.Addf(diag.KindInput, "Error reading %s file: %v", description, err)
		return
	}
	defer file.Close()

	reader := bufio.NewReader(file)
	line := 0
	for {
		data, tooLong, err := readLine(reader, maxLineSize)
		if err != nil {
			if !errors.Is(err, io.EOF) {
				bag.Addf(diag.KindInput, "Error reading %s file: %v", description, fmt.Errorf("after line %d: %w", line, err))
			}
			return
		}
		line++
		if tooLong {
			bag.Addf(diag.KindInput, "Line %d of %s file is longer than %d bytes and was skipped", line, description, maxLineSize)
			continue
		}

		text := bytes.TrimSpace(data)
		if len(text) == 0 {
			continue
		}

		var message T
		if err := json.Unmarshal(text, &message); err != nil {
			bag.Addf(diag.KindInput, "JSON parse error in %s file at line %d: %v", description, line, err)
			continue
		}
		apply(message)
	}
}

// readLine returns the next line without its terminator. A line longer than limit is
// still consumed to its end, so reading resumes at the following line.
func readLine(r *bufio.Reader, limit int) (line []byte, tooLong bool, err error) {
	for {
		chunk, isPrefix, err := r.ReadLine()
		if err != nil {
			return nil, false, err
		}
		if !tooLong {
			if len(line)+len(chunk) > limit {
				line, tooLong = nil, true
			} else {
				line = append(line, chunk...)
			}
		}
		if !isPrefix {
			return line, tooLong, nil
		}
	}
}
