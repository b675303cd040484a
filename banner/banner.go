/*
 * MIT License
 *
 * Copyright (c) 2024 gaspi contributors
 *
 * Permission is hereby granted, free of charge, to any person obtaining a copy
 * of this software and associated documentation files (the "Software"), to deal
 * in the Software without restriction, including without limitation the rights
 * to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
 * copies of the Software, and to permit persons to whom the Software is
 * furnished to do so, subject to the following conditions:
 *
 * The above copyright notice and this permission notice shall be included in all
 * copies or substantial portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
 * IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
 * FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
 * AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
 * LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
 * OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
 * SOFTWARE.
 */

// Package banner prints the resolved configuration to stdout in color at
// startup, the CLI texture every run of the arbiter carries regardless of
// which features are enabled.
package banner

import (
	"io"

	"github.com/fatih/color"
	"github.com/mattn/go-colorable"
)

// Print writes text (typically a config.Config.Banner() block) to stdout
// in bold cyan, falling back to plain output on platforms where
// go-colorable can't wrap the stream.
func Print(text string) {
	Fprint(colorable.NewColorableStdout(), text)
}

// Fprint writes text to w in bold cyan.
func Fprint(w io.Writer, text string) {
	c := color.New(color.FgCyan, color.Bold)
	c.Fprintln(w, text)
}
