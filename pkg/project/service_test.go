package project

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/rishabhxchoudhary/fractal/pkg/domain"
)

func TestCreate_RequiresName(t *testing.T) {
	svc := &Service{}

	for _, name := range []string{"", "   ", "\t\n"} {
		_, err := svc.Create(context.Background(), uuid.New(), CreateParams{
			WorkspaceID: uuid.New(),
			Name:        name,
		})
		if !errors.Is(err, domain.ErrEmptyName) {
			t.Errorf("Create(name=%q) = %v, want ErrEmptyName", name, err)
		}
	}
}
