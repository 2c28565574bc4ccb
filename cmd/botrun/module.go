package main

import (
	"github.com/reusee/dscope"
	"github.com/reusee/botrun/consoles"
	"github.com/reusee/botrun/instances"
	"github.com/reusee/botrun/reports"
)

type Module struct {
	dscope.Module
	Instances instances.Module
	Consoles  consoles.Module
	Reports   reports.Module
}
