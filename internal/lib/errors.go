package lib

import "fmt"

// WrapError keeps both errors reachable through errors.Is / errors.As
func WrapError(parent error, child error) error {
	return fmt.Errorf("%w: %w", parent, child)
}
