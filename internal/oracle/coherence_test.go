package oracle

import (
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBuiltInLanguagesAreCoherent(t *testing.T) {
	registry, err := DefaultRegistry()
	require.NoError(t, err)
	require.NotEmpty(t, registry.Definitions(), "languages.yml must define at least one language")

	for _, def := range registry.Definitions() {
		ref := def.Image[strings.LastIndex(def.Image, "/")+1:]
		require.Contains(t, ref, ":", "language %s must pin an image tag", def.Name)
		require.NotEmpty(t, filepath.Ext(def.File), "language %s sample file needs an extension", def.Name)

		for i, step := range def.Setup {
			needsDist := slices.Contains(step.If, IfClientDist)
			needsExclude := slices.Contains(step.If, IfExcludePackage)
			require.Equal(t, needsDist, strings.Contains(step.Run, "$CLIENT_DIST"),
				"language %s setup[%d] must use $CLIENT_DIST exactly when conditioned on client-dist", def.Name, i)
			require.Equal(t, needsExclude, strings.Contains(step.Run, "$EXCLUDE_PACKAGE"),
				"language %s setup[%d] must use $EXCLUDE_PACKAGE exactly when conditioned on exclude-package", def.Name, i)
		}
		require.NotContains(t, def.Check, "$CLIENT_DIST", "language %s check must not depend on an optional client dist", def.Name)
		require.NotContains(t, def.Check, "$EXCLUDE_PACKAGE", "language %s check must not depend on an optional package", def.Name)
	}
}
