package main

// Version is set at release time via -ldflags "-X main.Version=...".
var Version = "dev"
