package cmd

import (
	"github.com/rs/zerolog/log"

	"github.com/patrikhermansson/lmnn/example"
)

// Execute runs the CLI code: a synthetic metric-learning demo with
// default parameters.
func Execute() {
	if err := example.RunDemo(example.DefaultDemoConfig()); err != nil {
		log.Fatal().Err(err).Msg("Demo failed")
	}
}
