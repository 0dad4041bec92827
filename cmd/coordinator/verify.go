package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dreamware/primeshard/internal/chunk"
	"github.com/dreamware/primeshard/internal/primes"
	"github.com/dreamware/primeshard/internal/storage"
)

var (
	errNotPrime   = errors.New("composite value in results")
	errDuplicate  = errors.New("duplicate value in results")
	errOutOfRange = errors.New("value outside searched range")
	errIncomplete = errors.New("results do not cover the range")
)

func newVerifyCommand() *cobra.Command {
	var rng string

	cmd := &cobra.Command{
		Use:   "verify [file]",
		Short: "Check a result file: every value prime, no duplicates, and with --range, complete",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := storage.DefaultPath
			if len(args) == 1 {
				path = args[0]
			}

			values, err := storage.ReadFile(path)
			if err != nil {
				return err
			}

			var want *chunk.Range
			if rng != "" {
				r, err := chunk.Parse(rng)
				if err != nil {
					return err
				}
				want = &r
			}

			if err := verify(values, want); err != nil {
				return fmt.Errorf("%s: %w", path, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %d primes verified\n", path, len(values))
			return nil
		},
	}
	cmd.Flags().StringVar(&rng, "range", "", "range the run searched; also checks completeness")
	return cmd
}

// verify checks values as written by a coordinator run. Order is not
// checked since results are stored in arrival order.
func verify(values []int64, want *chunk.Range) error {
	seen := make(map[int64]struct{}, len(values))
	for i, v := range values {
		if !primes.IsPrime(v) {
			return fmt.Errorf("%w: %d at line %d", errNotPrime, v, i+1)
		}
		if _, dup := seen[v]; dup {
			return fmt.Errorf("%w: %d at line %d", errDuplicate, v, i+1)
		}
		seen[v] = struct{}{}
		if want != nil && !want.Contains(v) {
			return fmt.Errorf("%w: %d not in %v", errOutOfRange, v, *want)
		}
	}
	if want != nil {
		if expected := primes.Count(want.Lo, want.Hi); expected != len(values) {
			return fmt.Errorf("%w: found %d of %d primes in %v", errIncomplete, len(values), expected, *want)
		}
	}
	return nil
}
