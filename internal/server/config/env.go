package config

import (
	"errors"
	"io/fs"

	"github.com/caarlos0/env/v11"
	"github.com/dmitrijs2005/linkup/internal/flagx"
	"github.com/joho/godotenv"
)

// EnvPrefix namespaces every environment variable read by the server,
// e.g. LINKUP_DATABASE_DSN.
const EnvPrefix = "LINKUP_"

// parseEnv overlays values from the process environment. A dotenv file is
// loaded first: the one named by -env when given (it must exist), otherwise
// ./.env when present. Variables already set in the environment win over the
// file. Only variables that are set touch config.
func parseEnv(config *Config) {
	if path := flagx.EnvFileFlag(); path != "" {
		if err := godotenv.Load(path); err != nil {
			panic(err)
		}
	} else if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		panic(err)
	}

	if err := env.ParseWithOptions(config, env.Options{Prefix: EnvPrefix}); err != nil {
		panic(err)
	}
}
