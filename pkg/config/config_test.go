package config_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/eclipse-pass/depositsvc/pkg/config"
)

func validRepository() config.RepositoryConfig {
	return config.RepositoryConfig{
		RepositoryKey: "dspace-main",
		Transport: config.TransportConfig{
			ProtocolBinding: config.ProtocolBinding{
				Protocol:      "swordv2",
				CollectionURL: "https://repo.example/swordv2/collection/1",
			},
			AuthRealms: []config.AuthRealm{
				{Mech: "userpass", Username: "depositor", Password: "secret"},
			},
		},
		Assembly: config.AssemblySpec{
			SpecURI:     "http://purl.org/net/sword/package/METSDSpaceSIP",
			Compression: "gzip",
			Archive:     "zip",
			Checksums:   []string{"sha256"},
		},
		Deposit: config.RepositoryDepositConfig{
			DepositProcessing: config.DepositProcessingConfig{BeanName: "dspace"},
			StatusMapping: config.StatusMappingConfig{
				Scheme: "http://dspace.org/state",
				Map:    map[string]string{"archived": "accepted", "withdrawn": "rejected"},
			},
		},
	}
}

func TestApplyDefaults_FillsZeroValues(t *testing.T) {
	cfg := &config.Config{}
	config.ApplyDefaults(cfg)

	require.Equal(t, "INFO", cfg.Logging.Level)
	require.Equal(t, "text", cfg.Logging.Format)
	require.Equal(t, "stdout", cfg.Logging.Output)
	require.NotZero(t, cfg.ShutdownTimeout)
	require.NotZero(t, cfg.Dispatch.Workers)
	require.NotZero(t, cfg.Status.Factor)
	require.NotZero(t, cfg.Aggregate.Interval)
	require.NotZero(t, cfg.Ingress.Workers)
	require.Equal(t, "depositsvc", cfg.AdminAPI.Issuer)
}

func TestValidate_AcceptsWellFormedConfig(t *testing.T) {
	cfg := &config.Config{
		AdminAPI:     config.AdminAPIConfig{ListenAddr: ":8443", OperatorSecret: "a-sufficiently-long-secret"},
		Repositories: []config.RepositoryConfig{validRepository()},
	}
	config.ApplyDefaults(cfg)

	require.NoError(t, config.Validate(cfg))
}

func TestValidate_RejectsShortOperatorSecret(t *testing.T) {
	cfg := &config.Config{
		AdminAPI: config.AdminAPIConfig{ListenAddr: ":8443", OperatorSecret: "too-short"},
	}
	config.ApplyDefaults(cfg)

	require.Error(t, config.Validate(cfg))
}

func TestValidate_RejectsUnknownProtocol(t *testing.T) {
	repo := validRepository()
	repo.Transport.ProtocolBinding.Protocol = "gopher"

	cfg := &config.Config{
		AdminAPI:     config.AdminAPIConfig{ListenAddr: ":8443", OperatorSecret: "a-sufficiently-long-secret"},
		Repositories: []config.RepositoryConfig{repo},
	}
	config.ApplyDefaults(cfg)

	require.Error(t, config.Validate(cfg))
}

func TestValidate_RejectsDuplicateRepositoryKeys(t *testing.T) {
	repo := validRepository()

	cfg := &config.Config{
		AdminAPI:     config.AdminAPIConfig{ListenAddr: ":8443", OperatorSecret: "a-sufficiently-long-secret"},
		Repositories: []config.RepositoryConfig{repo, repo},
	}
	config.ApplyDefaults(cfg)

	require.Error(t, config.Validate(cfg))
}

func TestGetDefaultConfig_IsInternallyValidExceptOperatorSecret(t *testing.T) {
	cfg := config.GetDefaultConfig()
	require.Equal(t, "INFO", cfg.Logging.Level)
	require.Empty(t, cfg.Repositories)

	// The default config has no operator secret configured; Validate
	// should reject that rather than silently accepting an empty
	// signing key.
	require.Error(t, config.Validate(cfg))
}
