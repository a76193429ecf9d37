package main

// Flag names for Viper binding
const (
	// Global flags
	FlagVerbose   = "verbose"
	FlagConfig    = "config"
	FlagLogFile   = "log-file"
	FlagJournal   = "journal"
	FlagUser      = "user"
	FlagNoLock    = "no-lock"
	FlagAssumeYes = "yes"

	// New command flags
	FlagRoot  = "root"
	FlagForce = "force"

	// Show command flags
	FlagIDs = "ids"
	FlagAll = "all"

	// Edit command flags
	FlagScript = "script"
	FlagExec   = "exec"

	// Migrate command flags
	FlagOutput = "output"

	// Output format flags
	FlagJSON = "json"
)
