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

package errors

import "strconv"

// CodeError is a numeric error code, namespaced per package via the
// MinPkg* constants below so codes never collide across components.
type CodeError uint16

const (
	UnknownError CodeError = 0

	MinPkgH1        CodeError = 100
	MinPkgGateway    CodeError = 200
	MinPkgRunner     CodeError = 300
	MinPkgConn       CodeError = 400
	MinPkgLifespan   CodeError = 500
	MinPkgServer     CodeError = 600
	MinPkgWorker     CodeError = 700
	MinPkgArbiter    CodeError = 800
	MinPkgConfig     CodeError = 900
	MinPkgLogger     CodeError = 1000
	MinPkgReloader   CodeError = 1100
	MinPkgMetrics    CodeError = 1200
	MinPkgAccessLog  CodeError = 1300
	MinPkgSysnet     CodeError = 1400

	MinAvailable CodeError = 2000
)

func (c CodeError) Uint16() uint16 { return uint16(c) }
func (c CodeError) Int() int       { return int(c) }
func (c CodeError) String() string { return strconv.Itoa(c.Int()) }
