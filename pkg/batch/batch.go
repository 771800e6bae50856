// Package batch runs a function over a list of inputs in sequential chunks.
//
// Inputs inside one chunk are processed concurrently and the chunk is awaited
// in full before the next one is dispatched, which caps the number of in-flight
// calls at the chunk size. Results keep the input order.
package batch

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"
)

// Func processes a single input.
type Func[T, R any] func(ctx context.Context, input T) (R, error)

// Error reports the failing input with the lowest index in its chunk.
type Error struct {
	Index int
	Chunk int
	Err   error
}

func (e *Error) Error() string {
	return fmt.Sprintf("batch chunk %d: input %d: %v", e.Chunk, e.Index, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Chunks splits inputs into ordered groups of at most size elements.
func Chunks[T any](inputs []T, size int) [][]T {
	if size < 1 {
		size = 1
	}
	chunks := make([][]T, 0, (len(inputs)+size-1)/size)
	for start := 0; start < len(inputs); start += size {
		end := start + size
		if end > len(inputs) {
			end = len(inputs)
		}
		chunks = append(chunks, inputs[start:end])
	}
	return chunks
}

// Run applies fn to every input, size inputs at a time. A chunk always runs to
// completion; if any of its invocations failed, Run returns the failure of the
// lowest input index, whatever order they finished in, and does not start the
// remaining chunks.
func Run[T, R any](ctx context.Context, inputs []T, size int, fn Func[T, R]) ([]R, error) {
	results := make([]R, len(inputs))
	offset := 0
	for chunkIdx, chunk := range Chunks(inputs, size) {
		// errgroup.Group without WithContext: siblings are not cancelled.
		var g errgroup.Group
		base := offset
		errs := make([]error, len(chunk))
		for i := range chunk {
			i := i
			g.Go(func() error {
				out, err := fn(ctx, chunk[i])
				if err != nil {
					errs[i] = &Error{Index: base + i, Chunk: chunkIdx, Err: err}
					return errs[i]
				}
				results[base+i] = out
				return nil
			})
		}
		if g.Wait() != nil {
			for _, err := range errs {
				if err != nil {
					return nil, err
				}
			}
		}
		offset += len(chunk)
	}
	return results, nil
}
