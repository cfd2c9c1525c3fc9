// Package ftpserver provides all the tools to build your own FTP server: The core library and the driver.
package ftpd

import (
	"compress/flate"
	"fmt"
	"io"
)

// deflateDefaultLevel is the compression level of every MODE Z transfer; no
// command changes it.
const deflateDefaultLevel = flate.DefaultCompression

// deflateTransfer wraps a data connection so that bytes written to it are
// deflate-compressed and bytes read from it are transparently decompressed,
// implementing the "MODE Z" compressed transfer mode.
type deflateTransfer struct {
	rw     io.ReadWriter
	writer *flate.Writer
	reader io.ReadCloser
}

func newDeflateTransfer(rw io.ReadWriter, level int) (*deflateTransfer, error) {
	writer, err := flate.NewWriter(rw, level)
	if err != nil {
		return nil, fmt.Errorf("could not create deflate writer: %w", err)
	}

	return &deflateTransfer{rw: rw, writer: writer}, nil
}

func (d *deflateTransfer) Write(p []byte) (int, error) {
	return d.writer.Write(p)
}

// Flush pushes any buffered compressed bytes to the underlying connection.
func (d *deflateTransfer) Flush() error {
	return d.writer.Flush()
}

func (d *deflateTransfer) Read(p []byte) (int, error) {
	if d.reader == nil {
		d.reader = flate.NewReader(d.rw)
	}

	return d.reader.Read(p)
}

// Close terminates the deflate stream, flushing any remaining compressed bytes.
func (d *deflateTransfer) Close() error {
	err := d.writer.Close()

	if d.reader != nil {
		if cerr := d.reader.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}

	return err
}
