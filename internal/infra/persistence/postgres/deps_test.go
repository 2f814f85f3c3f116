package postgres

import (
	"testing"

	"clinicdesk/testutil"
)

func TestImportsStayInsidePersistence(t *testing.T) {
	testutil.AssertNoDirectImports(t, ".",
		testutil.ModuleImportExcept("clinicdesk/internal/infra/persistence/memory", "clinicdesk/pkg/domain"),
		"postgres backend only wraps the memory store")
}
