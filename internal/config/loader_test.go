package config_test

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/okian/whattoeat/internal/config"
	"github.com/smartystreets/goconvey/convey"
)

func TestConfigLoader(t *testing.T) {
	convey.Convey("Given a config loader", t, func() {
		ctx := context.Background()
		clearConfigEnvVars()

		convey.Convey("When loading config with defaults only", func() {
			cfg, err := config.Load(ctx)

			convey.Convey("Then it should load successfully with defaults", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":9080")
				convey.So(cfg.QueueSize, convey.ShouldEqual, 10_000)
				convey.So(cfg.WorkerCount, convey.ShouldEqual, 2)
				convey.So(cfg.DBPath, convey.ShouldEqual, "whattoeat.db")
			})
		})

		convey.Convey("When loading config with environment variables", func() {
			_ = os.Setenv("WHATTOEAT_ADDR", ":8080")
			_ = os.Setenv("WHATTOEAT_SPIN_STEPS", "12")
			_ = os.Setenv("WHATTOEAT_SPIN_AUTO_STOP", "false")
			_ = os.Setenv("WHATTOEAT_SEED", "42")
			_ = os.Setenv("WHATTOEAT_DB_PATH", ":memory:")
			_ = os.Setenv("WHATTOEAT_TELEGRAM_ALLOWED_USERS", "11,22")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should override defaults with env vars", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":8080")
				convey.So(cfg.SpinSteps, convey.ShouldEqual, 12)
				convey.So(cfg.SpinAutoStop, convey.ShouldBeFalse)
				convey.So(cfg.Seed, convey.ShouldEqual, 42)
				convey.So(cfg.DBPath, convey.ShouldEqual, ":memory:")
				convey.So(cfg.TelegramAllowedUsers, convey.ShouldResemble, []int64{11, 22})
			})
		})

		convey.Convey("When loading config with a YAML file", func() {
			tmpFile := createTempFile(t, "whattoeat-config-*.yaml", `
addr: ":9090"
catalog_path: "/etc/whattoeat/menu.yaml"
spin_steps: 20
worker_count: 4
telegram_webhook_url: "https://example.org/telegram/webhook"
telegram_secret_token: "s3cret"
telegram_allowed_users: [7]
`)
			_ = os.Setenv("WHATTOEAT_CONFIG", tmpFile)
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should load from the file and keep other defaults", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":9090")
				convey.So(cfg.CatalogPath, convey.ShouldEqual, "/etc/whattoeat/menu.yaml")
				convey.So(cfg.SpinSteps, convey.ShouldEqual, 20)
				convey.So(cfg.WorkerCount, convey.ShouldEqual, 4)
				convey.So(cfg.TelegramWebhookURL, convey.ShouldEqual, "https://example.org/telegram/webhook")
				convey.So(cfg.TelegramSecretToken, convey.ShouldEqual, "s3cret")
				convey.So(cfg.TelegramAllowedUsers, convey.ShouldResemble, []int64{7})
				convey.So(cfg.QueueSize, convey.ShouldEqual, 10_000)
			})
		})

		convey.Convey("When both file and environment variables are set", func() {
			tmpFile := createTempFile(t, "whattoeat-config-*.yaml", "addr: \":9090\"\nworker_count: 4\n")
			_ = os.Setenv("WHATTOEAT_CONFIG", tmpFile)
			_ = os.Setenv("WHATTOEAT_WORKER_COUNT", "8")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then environment variables win", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":9090")
				convey.So(cfg.WorkerCount, convey.ShouldEqual, 8)
			})
		})

		convey.Convey("When a .env file is present", func() {
			envFile := createTempFile(t, "whattoeat-*.env", "WHATTOEAT_ADDR=:7070\nWHATTOEAT_LOG_LEVEL=debug\n")
			_ = os.Setenv("WHATTOEAT_ENV_FILE", envFile)
			_ = os.Setenv("WHATTOEAT_LOG_LEVEL", "warn")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it fills unset variables without overriding set ones", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":7070")
				convey.So(cfg.LogLevel, convey.ShouldEqual, "warn")
			})
		})

		convey.Convey("When loading config with invalid YAML", func() {
			tmpFile := createTempFile(t, "whattoeat-config-*.yaml", `invalid: yaml: content: [`)
			_ = os.Setenv("WHATTOEAT_CONFIG", tmpFile)
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should return a load error", func() {
				convey.So(errors.Is(err, config.ErrLoadConfig), convey.ShouldBeTrue)
				convey.So(cfg, convey.ShouldBeNil)
			})
		})

		convey.Convey("When the config file does not exist", func() {
			_ = os.Setenv("WHATTOEAT_CONFIG", "/non/existent/file.yaml")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should return an error", func() {
				convey.So(err, convey.ShouldNotBeNil)
				convey.So(cfg, convey.ShouldBeNil)
			})
		})

		convey.Convey("When loading config with empty addr", func() {
			_ = os.Setenv("WHATTOEAT_ADDR", "")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should return a validation error", func() {
				convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
				convey.So(err.Error(), convey.ShouldContainSubstring, "addr must not be empty")
				convey.So(cfg, convey.ShouldBeNil)
			})
		})

		convey.Convey("When loading config with invalid numbers", func() {
			_ = os.Setenv("WHATTOEAT_QUEUE_SIZE", "invalid")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should return an error", func() {
				convey.So(err, convey.ShouldNotBeNil)
				convey.So(cfg, convey.ShouldBeNil)
			})
		})
	})
}

func TestConfigValidate(t *testing.T) {
	convey.Convey("Given invalid field values", t, func() {
		cases := map[string]func(*config.Config){
			"log_format":          func(c *config.Config) { c.LogFormat = "xml" },
			"spin_steps":          func(c *config.Config) { c.SpinSteps = 0 },
			"spin delays":         func(c *config.Config) { c.SpinInitialMS = -1 },
			"max_sessions":        func(c *config.Config) { c.MaxSessions = 0 },
			"session_ttl_seconds": func(c *config.Config) { c.SessionTTLSeconds = 0 },
			"queue_size":          func(c *config.Config) { c.QueueSize = 0 },
			"worker_count":        func(c *config.Config) { c.WorkerCount = -2 },
			"db_path":             func(c *config.Config) { c.DBPath = " " },
			"max_history_limit":   func(c *config.Config) { c.MaxHistoryLimit = 0 },
		}
		for field, mutate := range cases {
			cfg := config.New()
			mutate(cfg)
			err := cfg.Validate()
			convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
			convey.So(err.Error(), convey.ShouldContainSubstring, field)
		}
	})
}

// Helper functions.

func clearConfigEnvVars() {
	for _, kv := range os.Environ() {
		for i := 0; i < len(kv); i++ {
			if kv[i] == '=' {
				if name := kv[:i]; len(name) > len(config.EnvPrefix) && name[:len(config.EnvPrefix)] == config.EnvPrefix {
					_ = os.Unsetenv(name)
				}
				break
			}
		}
	}
}

func createTempFile(t *testing.T, pattern, content string) string {
	t.Helper()
	f, err := os.CreateTemp(t.TempDir(), pattern)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := f.WriteString(content); err != nil {
		t.Fatal(err)
	}
	if err := f.Close(); err != nil {
		t.Fatal(err)
	}
	return f.Name()
}
