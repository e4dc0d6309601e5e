package main

// Flag structs to decouple cobra from logic for testing.

type StartFlags struct {
	ConfigPath string
	NoWatch    bool // disable config hot reload
}

type ValidateFlags struct {
	ConfigPath string
}
