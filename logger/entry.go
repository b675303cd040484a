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

package logger

// Entry is a fluent per-message builder. Typical use, mirrored across every
// component of this module:
//
//	ent := log.Entry(logger.ErrorLevel, "starting http server")
//	ent.ErrorAdd(err)
//	ent.Log()
type Entry struct {
	l       *lgr
	level   Level
	message string
	fields  Fields
	errs    []error
}

// Field attaches a key/value pair to this entry only.
func (e *Entry) Field(key string, val interface{}) *Entry {
	if e.fields == nil {
		e.fields = Fields{}
	}
	e.fields[key] = val
	return e
}

// FieldAdd merges a whole Fields map into this entry only.
func (e *Entry) FieldAdd(f Fields) *Entry {
	e.fields = e.fields.merge(f)
	return e
}

// ErrorAdd appends non-nil errors to the entry; logged as an "error" field
// if any are present when Log is called.
func (e *Entry) ErrorAdd(errs ...error) *Entry {
	for _, err := range errs {
		if err != nil {
			e.errs = append(e.errs, err)
		}
	}
	return e
}

// Log flushes the entry to the underlying logger.
func (e *Entry) Log() {
	e.l.log(e.level, e.message, e.fields, e.errs)
}
