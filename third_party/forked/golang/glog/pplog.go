//  
//  Copyright 2023 PayPal Inc.
//  
//  Licensed to the Apache Software Foundation (ASF) under one or more
//  contributor license agreements.  See the NOTICE file distributed with
//  this work for additional information regarding copyright ownership.
//  The ASF licenses this file to You under the Apache License, Version 2.0
//  (the "License"); you may not use this file except in compliance with
//  the License.  You may obtain a copy of the License at
//  
//     http://www.apache.org/licenses/LICENSE-2.0
//  
//  Unless required by applicable law or agreed to in writing, software
//  distributed under the License is distributed on an "AS IS" BASIS,
//  WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
//  See the License for the specific language governing permissions and
//  limitations under the License.
//  

package glog

import (
	"flag"
	"fmt"
	"strings"
	"sync"

	upstream "github.com/golang/glog"
)

type ILogLevel interface {
	SetLevel()
}

// default is LOG_INFO
var (
	LOG_ERROR   bool = true
	LOG_WARN    bool = true
	LOG_INFO    bool = true
	LOG_DEBUG   bool = false
	LOG_VERBOSE bool = false
	pmap        map[string]ILogLevel

	appName     string
	cleanupOnce sync.Once
)

func Initialize(args ...interface{}) (err error) {
	sz := len(args)
	if sz < 2 {
		err = fmt.Errorf("two arguments expected")
		return
	}
	var level string
	var name string
	var ok bool
	if level, ok = args[0].(string); !ok {
		err = fmt.Errorf("a string log level expected")
		return
	}
	if name, ok = args[1].(string); !ok {
		err = fmt.Errorf("a string appname expected")
		return
	}
	InitLogging(level, name)
	return
}

func Finalize() {
	cleanupOnce.Do(func() {
		upstream.Flush()
	})
}

func InitLogging(level string, name string) {
	if f := flag.Lookup("logtostderr"); f != nil {
		f.Value.Set("true")
	}
	appName = name

	var glevel string

	if strings.EqualFold("error", level) {
		glevel = "1"
	} else if strings.EqualFold("warning", level) {
		glevel = "2"
	} else if strings.EqualFold("debug", level) {
		glevel = "4"
	} else if strings.EqualFold("verbose", level) {
		glevel = "5"
	} else { //default is info
		glevel = "3"
	}

	if f := flag.Lookup("v"); f != nil {
		f.Value.Set(glevel)
	}

	LOG_ERROR = bool(upstream.V(1))
	LOG_WARN = bool(upstream.V(2))
	LOG_INFO = bool(upstream.V(3))
	LOG_DEBUG = bool(upstream.V(4))
	LOG_VERBOSE = bool(upstream.V(5))

	for _, value := range pmap {
		value.SetLevel()
	}
}

func AppName() string {
	return appName
}

// wrappers to glog APIs so we can check log_level before callling into real code
func Info(args ...interface{}) {
	if LOG_INFO {
		upstream.InfoDepth(1, args...)
	}
}

func InfoDepth(depth int, args ...interface{}) {
	if LOG_INFO {
		upstream.InfoDepth(depth+1, args...)
	}
}

func Infoln(args ...interface{}) {
	if LOG_INFO {
		upstream.InfoDepth(1, fmt.Sprintln(args...))
	}
}

func Infof(format string, args ...interface{}) {
	if LOG_INFO {
		upstream.InfoDepth(1, fmt.Sprintf(format, args...))
	}
}

func Warning(args ...interface{}) {
	if LOG_WARN {
		upstream.WarningDepth(1, args...)
	}
}

func WarningDepth(depth int, args ...interface{}) {
	if LOG_WARN {
		upstream.WarningDepth(depth+1, args...)
	}
}

func Warningln(args ...interface{}) {
	if LOG_WARN {
		upstream.WarningDepth(1, fmt.Sprintln(args...))
	}
}

func Warningf(format string, args ...interface{}) {
	if LOG_WARN {
		upstream.WarningDepth(1, fmt.Sprintf(format, args...))
	}
}

func Error(args ...interface{}) {
	if LOG_ERROR {
		upstream.ErrorDepth(1, args...)
	}
}

func ErrorDepth(depth int, args ...interface{}) {
	if LOG_ERROR {
		upstream.ErrorDepth(depth+1, args...)
	}
}

func Errorln(args ...interface{}) {
	if LOG_ERROR {
		upstream.ErrorDepth(1, fmt.Sprintln(args...))
	}
}

func Errorf(format string, args ...interface{}) {
	if LOG_ERROR {
		upstream.ErrorDepth(1, fmt.Sprintf(format, args...))
	}
}

// Fatal and Exit are never gated.
func Fatal(args ...interface{}) {
	upstream.FatalDepth(1, args...)
}

func Fatalf(format string, args ...interface{}) {
	upstream.FatalDepth(1, fmt.Sprintf(format, args...))
}

func Exit(args ...interface{}) {
	upstream.ExitDepth(1, args...)
}

func Exitf(format string, args ...interface{}) {
	upstream.ExitDepth(1, fmt.Sprintf(format, args...))
}

func VerboseDepth(depth int, args ...interface{}) {
	if LOG_VERBOSE {
		upstream.InfoDepth(depth+1, args...)
	}
}

func Verboseln(args ...interface{}) {
	if LOG_VERBOSE {
		upstream.InfoDepth(1, fmt.Sprintln(args...))
	}
}

func Verbosef(format string, args ...interface{}) {
	if LOG_VERBOSE {
		upstream.InfoDepth(1, fmt.Sprintf(format, args...))
	}
}

func Debug(args ...interface{}) {
	if LOG_DEBUG {
		upstream.InfoDepth(1, args...)
	}
}

func DebugDepth(depth int, args ...interface{}) {
	if LOG_DEBUG {
		upstream.InfoDepth(depth+1, args...)
	}
}

func Debugln(args ...interface{}) {
	if LOG_DEBUG {
		upstream.InfoDepth(1, fmt.Sprintln(args...))
	}
}

func Debugf(format string, args ...interface{}) {
	if LOG_DEBUG {
		upstream.InfoDepth(1, fmt.Sprintf(format, args...))
	}
}

func init() {
	pmap = make(map[string]ILogLevel)
}

func RegisterPackage(name string, level ILogLevel) {
	if pmap == nil {
		pmap = make(map[string]ILogLevel)
	}

	pmap[name] = level
}

func SetVModule(value string) {
	if f := flag.Lookup("vmodule"); f != nil {
		f.Value.Set(value)
	}
}
