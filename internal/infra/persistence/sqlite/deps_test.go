package sqlite

import (
	"testing"

	"clinicdesk/testutil"
)

func TestImportsStayInsidePersistence(t *testing.T) {
	testutil.AssertNoDirectImports(t, ".",
		testutil.ModuleImportExcept("clinicdesk/internal/infra/persistence/memory", "clinicdesk/pkg/domain"),
		"sqlite backend only wraps the memory store")
}
