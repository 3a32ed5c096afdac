package config

import (
	"context"
	"fmt"
	"net/http"

	"github.com/eclipse-pass/depositsvc/pkg/assemble"
	"github.com/eclipse-pass/depositsvc/pkg/assemble/dspace"
	"github.com/eclipse-pass/depositsvc/pkg/assemble/nihms"
	"github.com/eclipse-pass/depositsvc/pkg/deposit"
	"github.com/eclipse-pass/depositsvc/pkg/pkgstream"
	"github.com/eclipse-pass/depositsvc/pkg/status"
	"github.com/eclipse-pass/depositsvc/pkg/store"
	"github.com/eclipse-pass/depositsvc/pkg/transport"
	"github.com/eclipse-pass/depositsvc/pkg/transport/fs"
	"github.com/eclipse-pass/depositsvc/pkg/transport/ftp"
	"github.com/eclipse-pass/depositsvc/pkg/transport/sword"
)

// ConfigResolver resolves a repository key or repository entity to the
// concrete bindings pkg/deposit and pkg/status need, implementing
// deposit.Resolver and status.MappingResolver against the
// RepositoryConfig set loaded from a configuration file. Resolving a
// status mapping is keyed by repository entity id rather than
// repositoryKey (spec.md §6), so MappingFor reads the store.Repository
// row first to learn its RepositoryKey.
type ConfigResolver struct {
	store      store.RecordStore
	byKey      map[string]RepositoryConfig
	httpClient *http.Client
}

// NewConfigResolver builds a resolver over repos, keyed by
// RepositoryKey. A nil httpClient defaults to http.DefaultClient, the
// same default pkg/transport/sword.New applies.
func NewConfigResolver(rs store.RecordStore, repos []RepositoryConfig, httpClient *http.Client) *ConfigResolver {
	byKey := make(map[string]RepositoryConfig, len(repos))
	for _, rc := range repos {
		byKey[rc.RepositoryKey] = rc
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &ConfigResolver{store: rs, byKey: byKey, httpClient: httpClient}
}

// Resolve implements deposit.Resolver.
func (r *ConfigResolver) Resolve(ctx context.Context, repositoryKey string) (deposit.RepositoryBinding, error) {
	rc, ok := r.byKey[repositoryKey]
	if !ok {
		return deposit.RepositoryBinding{}, fmt.Errorf("config: no repository configured for key %q", repositoryKey)
	}

	binding, err := r.buildTransport(rc.Transport.ProtocolBinding)
	if err != nil {
		return deposit.RepositoryBinding{}, err
	}

	hints, err := r.buildHints(rc.Transport)
	if err != nil {
		return deposit.RepositoryBinding{}, err
	}

	opts, err := buildAssembleOptions(rc.Assembly)
	if err != nil {
		return deposit.RepositoryBinding{}, err
	}

	assembler, err := buildAssembler(rc.Deposit.DepositProcessing.BeanName)
	if err != nil {
		return deposit.RepositoryBinding{}, err
	}

	return deposit.RepositoryBinding{
		Assembler:       assembler,
		Transport:       binding,
		Hints:           hints,
		AssembleOptions: opts,
	}, nil
}

// MappingFor implements status.MappingResolver.
func (r *ConfigResolver) MappingFor(ctx context.Context, repositoryID string) (status.Mapping, error) {
	repo, err := store.ReadTyped[store.Repository](ctx, r.store, store.KindRepository, repositoryID)
	if err != nil {
		return status.Mapping{}, err
	}

	rc, ok := r.byKey[repo.RepositoryKey]
	if !ok {
		return status.Mapping{}, fmt.Errorf("config: no repository configured for key %q", repo.RepositoryKey)
	}

	terms := make(map[string]status.Resolved, len(rc.Deposit.StatusMapping.Map))
	for term, resolved := range rc.Deposit.StatusMapping.Map {
		terms[term] = status.Resolved(resolved)
	}

	return status.Mapping{Scheme: rc.Deposit.StatusMapping.Scheme, Terms: terms}, nil
}

func (r *ConfigResolver) buildTransport(pb ProtocolBinding) (transport.Binding, error) {
	switch pb.Protocol {
	case "swordv2":
		return sword.New(r.httpClient), nil
	case "ftp":
		return ftp.New(ftp.ConnectOptions{}), nil
	case "filesystem":
		return fs.New(), nil
	default:
		return nil, fmt.Errorf("config: unknown protocol binding %q", pb.Protocol)
	}
}

func (r *ConfigResolver) buildHints(tc TransportConfig) (transport.Hints, error) {
	pb := tc.ProtocolBinding

	var proto transport.Protocol
	switch pb.Protocol {
	case "swordv2":
		proto = transport.ProtocolSWORDv2
	case "ftp":
		proto = transport.ProtocolFTP
	case "filesystem":
		proto = transport.ProtocolFilesystem
	default:
		return transport.Hints{}, fmt.Errorf("config: unknown protocol binding %q", pb.Protocol)
	}

	hints := transport.Hints{
		Protocol:      proto,
		ServerFQDN:    pb.ServerFQDN,
		ServerPort:    pb.ServerPort,
		CollectionURL: pb.CollectionURL,
		BaseDir:       pb.BaseDir,
		Overwrite:     pb.Overwrite,
		BinaryMode:    pb.BinaryMode,
	}

	if len(tc.AuthRealms) > 0 {
		realm := tc.AuthRealms[0]
		switch realm.Mech {
		case "userpass":
			hints.AuthMode = transport.AuthUserpass
		case "implicit":
			hints.AuthMode = transport.AuthImplicit
		case "reference":
			hints.AuthMode = transport.AuthReference
		default:
			return transport.Hints{}, fmt.Errorf("config: unknown auth mech %q", realm.Mech)
		}
		hints.Username = realm.Username
		hints.Password = realm.Password
		if realm.BaseURL != "" && hints.CollectionURL == "" {
			hints.CollectionURL = realm.BaseURL
		}
	}

	return hints, nil
}

func buildAssembleOptions(spec AssemblySpec) (assemble.Options, error) {
	opts := assemble.Options{PackageSpec: spec.SpecURI}

	switch spec.Archive {
	case "", "zip":
		opts.Archive = pkgstream.ArchiveZip
	case "tar":
		opts.Archive = pkgstream.ArchiveTar
	default:
		return assemble.Options{}, fmt.Errorf("config: unknown archive format %q", spec.Archive)
	}

	switch spec.Compression {
	case "", "none":
		opts.Compression = pkgstream.CompressionNone
	case "gzip":
		opts.Compression = pkgstream.CompressionGzip
	default:
		return assemble.Options{}, fmt.Errorf("config: unknown compression %q", spec.Compression)
	}

	opts.Algorithms = make([]pkgstream.ChecksumAlgo, 0, len(spec.Checksums))
	for _, c := range spec.Checksums {
		switch c {
		case "md5":
			opts.Algorithms = append(opts.Algorithms, pkgstream.ChecksumMD5)
		case "sha256":
			opts.Algorithms = append(opts.Algorithms, pkgstream.ChecksumSHA256)
		case "sha512":
			opts.Algorithms = append(opts.Algorithms, pkgstream.ChecksumSHA512)
		default:
			return assemble.Options{}, fmt.Errorf("config: unknown checksum algorithm %q", c)
		}
	}

	return opts, nil
}

func buildAssembler(beanName string) (assemble.Assembler, error) {
	switch beanName {
	case "dspace":
		return dspace.New(), nil
	case "nihms":
		return nihms.New(), nil
	default:
		return nil, fmt.Errorf("config: unknown deposit processing bean %q", beanName)
	}
}
