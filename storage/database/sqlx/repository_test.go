package sqlxrepos

import (
	"testing"

	"github.com/trezcool/cshub/core/user"
	testutil "github.com/trezcool/cshub/tests"
)

func TestRepository(t *testing.T) {
	testutil.TestRepository(t, func(t *testing.T) user.Repository {
		return NewRepository(testutil.PrepareDB(t))
	})
}
