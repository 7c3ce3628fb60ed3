package model

var Version = "dev"
