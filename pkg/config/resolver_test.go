package config_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/eclipse-pass/depositsvc/pkg/assemble/dspace"
	"github.com/eclipse-pass/depositsvc/pkg/config"
	"github.com/eclipse-pass/depositsvc/pkg/pkgstream"
	"github.com/eclipse-pass/depositsvc/pkg/status"
	"github.com/eclipse-pass/depositsvc/pkg/store"
	"github.com/eclipse-pass/depositsvc/pkg/store/memstore"
	"github.com/eclipse-pass/depositsvc/pkg/transport"
	"github.com/eclipse-pass/depositsvc/pkg/transport/sword"
)

func TestConfigResolver_ResolveBuildsSwordBinding(t *testing.T) {
	rs := memstore.New()
	resolver := config.NewConfigResolver(rs, []config.RepositoryConfig{validRepository()}, nil)

	binding, err := resolver.Resolve(t.Context(), "dspace-main")
	require.NoError(t, err)

	require.IsType(t, sword.New(nil), binding.Transport)
	require.IsType(t, dspace.New(), binding.Assembler)
	require.Equal(t, transport.ProtocolSWORDv2, binding.Hints.Protocol)
	require.Equal(t, transport.AuthUserpass, binding.Hints.AuthMode)
	require.Equal(t, "depositor", binding.Hints.Username)
	require.Equal(t, pkgstream.ArchiveZip, binding.AssembleOptions.Archive)
	require.Equal(t, pkgstream.CompressionGzip, binding.AssembleOptions.Compression)
	require.Equal(t, []pkgstream.ChecksumAlgo{pkgstream.ChecksumSHA256}, binding.AssembleOptions.Algorithms)
}

func TestConfigResolver_ResolveUnknownKeyErrors(t *testing.T) {
	rs := memstore.New()
	resolver := config.NewConfigResolver(rs, []config.RepositoryConfig{validRepository()}, nil)

	_, err := resolver.Resolve(t.Context(), "does-not-exist")
	require.Error(t, err)
}

func TestConfigResolver_MappingForLooksUpByRepositoryKey(t *testing.T) {
	rs := memstore.New()
	ctx := t.Context()

	repo := store.NewRepository("DSpace Main", "dspace-main")
	repoID, err := rs.Create(ctx, repo)
	require.NoError(t, err)

	resolver := config.NewConfigResolver(rs, []config.RepositoryConfig{validRepository()}, nil)

	mapping, err := resolver.MappingFor(ctx, repoID)
	require.NoError(t, err)
	require.Equal(t, "http://dspace.org/state", mapping.Scheme)
	require.Equal(t, status.ResolvedAccepted, mapping.Terms["archived"])
	require.Equal(t, status.ResolvedRejected, mapping.Terms["withdrawn"])
}

func TestConfigResolver_MappingForUnknownRepositoryErrors(t *testing.T) {
	rs := memstore.New()
	ctx := t.Context()

	repo := store.NewRepository("Unconfigured", "not-configured")
	repoID, err := rs.Create(ctx, repo)
	require.NoError(t, err)

	resolver := config.NewConfigResolver(rs, []config.RepositoryConfig{validRepository()}, nil)

	_, err = resolver.MappingFor(ctx, repoID)
	require.Error(t, err)
}
