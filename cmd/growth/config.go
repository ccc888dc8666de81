package main

// Flag names for Viper binding
const (
	// Global flags
	FlagVerbose    = "verbose"
	FlagConfig     = "config"
	FlagLogFile    = "log-file"
	FlagStateFile  = "state-file"
	FlagSocketPath = "socket-path"

	// Start command flags
	FlagTUI             = "tui"
	FlagDaemon          = "daemon"
	FlagRoutine         = "routine-file"
	FlagDay             = "day"
	FlagAutoProgression = "auto-progression"
	FlagIntentEnabled   = "intent-enabled"
	FlagProgressEnabled = "progress-enabled"

	// Stop command flags
	FlagClient = "client"

	// Quick and prompt command flags
	FlagName     = "name"
	FlagDuration = "duration"

	// Intent command flags
	FlagTimer = "timer"

	// Events and history command flags
	FlagFollow = "follow"
	FlagCount  = "count"

	// Output format flags
	FlagJSON = "json"

	// Init command flags
	FlagDryRun  = "dry-run"
	FlagForce   = "force"
	FlagMinimal = "minimal"
	FlagGlobal  = "global"
)
