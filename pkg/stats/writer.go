//  
//  Copyright 2023 PayPal Inc.
//  
//  Licensed to the Apache Software Foundation (ASF) under one or more
//  contributor license agreements.  See the NOTICE file distributed with
//  this work for additional information regarding copyright ownership.
//  The ASF licenses this file to You under the Apache License, Version 2.0
//  (the "License"); you may not use this file except in compliance with
//  the License.  You may obtain a copy of the License at
//  
//     http://www.apache.org/licenses/LICENSE-2.0
//  
//  Unless required by applicable law or agreed to in writing, software
//  distributed under the License is distributed on an "AS IS" BASIS,
//  WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
//  See the License for the specific language governing permissions and
//  limitations under the License.
//  

package stats

import (
	"bytes"
	"fmt"
	goio "io"
	"os"
	"path/filepath"
	"time"
)

const kHeaderEvery = 23

var (
	_ IStatesWriter = (*TextWriter)(nil)
)

// TextWriter writes fixed width columns, repeating the header line every
// 23 lines.
type TextWriter struct {
	cnt    int
	writer goio.Writer
	closer goio.Closer
}

func NewTextWriter(w goio.Writer) *TextWriter {
	tw := &TextWriter{writer: w}
	if c, ok := w.(goio.Closer); ok && w != os.Stdout && w != os.Stderr {
		tw.closer = c
	}
	return tw
}

// NewFileWriter appends to dir/state.log, creating dir if needed.
func NewFileWriter(dir string) (*TextWriter, error) {
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		if err = os.MkdirAll(dir, 0777); err != nil {
			return nil, err
		}
	}
	file, err := os.OpenFile(filepath.Join(dir, "state.log"), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return nil, err
	}
	return NewTextWriter(file), nil
}

func (w *TextWriter) Write(now time.Time, states []IState) error {
	if w.cnt%kHeaderEvery == 0 {
		var buf bytes.Buffer
		for _, i := range states {
			format := fmt.Sprintf("%%%ds ", i.Width())
			fmt.Fprintf(&buf, format, i.Header())
		}
		if _, err := fmt.Fprintf(w.writer, "%s %s\n", now.Format("01-02 15:04:05"), buf.String()); err != nil {
			return err
		}
	}
	var buf bytes.Buffer
	for _, i := range states {
		format := fmt.Sprintf("%%%ds ", i.Width())
		fmt.Fprintf(&buf, format, i.State())
	}
	w.cnt++
	_, err := fmt.Fprintf(w.writer, "%s %s\n", now.Format("01-02 15:04:05"), buf.String())
	return err
}

func (w *TextWriter) Close() error {
	if w.closer != nil {
		return w.closer.Close()
	}
	return nil
}
