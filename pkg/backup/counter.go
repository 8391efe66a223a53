package backup

import "io"

// byteCounter wraps an io.Writer and counts bytes written
type byteCounter struct {
	w     io.Writer
	count int64
}

func (bc *byteCounter) Write(p []byte) (int, error) {
	n, err := bc.w.Write(p)
	bc.count += int64(n)
	return n, err
}

func (bc *byteCounter) Count() int64 {
	return bc.count
}

// byteReader counts bytes read through it
type byteReader struct {
	r     io.Reader
	count int64
}

func (br *byteReader) Read(p []byte) (int, error) {
	n, err := br.r.Read(p)
	br.count += int64(n)
	return n, err
}
