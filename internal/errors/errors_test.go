package errors

import (
	"errors"
	"io/fs"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBuildError_Error_IncludesPathAndCause(t *testing.T) {
	cause := errors.New("boom")
	err := Wrap(cause, CategoryRender, "template evaluation failed").WithPath("posts/a.md")

	require.Contains(t, err.Error(), "render")
	require.Contains(t, err.Error(), "posts/a.md")
	require.Contains(t, err.Error(), "boom")
}

func TestBuildError_Unwrap_PreservesCause(t *testing.T) {
	err := Wrap(fs.ErrNotExist, CategoryFileSystem, "read source").WithPath("data/nav.yaml")

	require.True(t, errors.Is(err, fs.ErrNotExist))
}

func TestCategory_Fatal(t *testing.T) {
	require.True(t, CategoryConfig.Fatal())
	require.True(t, CategoryCycle.Fatal())
	require.False(t, CategoryParse.Fatal())
	require.False(t, CategoryRender.Fatal())
	require.False(t, CategoryFileSystem.Fatal())
}

func TestGetCategory_NonBuildError_IsInternal(t *testing.T) {
	require.Equal(t, CategoryInternal, GetCategory(errors.New("plain")))
	require.Equal(t, CategoryResolve, GetCategory(New(CategoryResolve, "missing template")))
	require.True(t, IsCategory(New(CategoryCycle, "loop"), CategoryCycle))
	require.True(t, IsFatal(New(CategoryCycle, "loop")))
	require.False(t, IsFatal(errors.New("plain")))
}
