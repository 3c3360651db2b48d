package postgresadapter

import (
	"context"

	"github.com/google/uuid"
)

// UUIDGenerator issues campaign handles and event ids.
type UUIDGenerator struct{}

func (UUIDGenerator) NewID(_ context.Context) (string, error) {
	id, err := uuid.NewRandom()
	if err != nil {
		return "", err
	}
	return id.String(), nil
}
