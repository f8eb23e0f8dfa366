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

/*
Package util implements some utility functions.
*/
package util

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

func (d Duration) MarshalText() (text []byte, err error) {
	text = []byte(d.Duration.String())
	return
}

// ParseBool accepts "1", "true" and "yes" (case insensitive) as true.
// Everything else is false.
func ParseBool(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1", "true", "yes":
		return true
	}
	return false
}

// LookupEnv returns the value of a non-empty environment variable.
func LookupEnv(name string) (value string, ok bool) {
	value, ok = os.LookupEnv(name)
	if ok && len(value) == 0 {
		ok = false
	}
	return
}

func EnvBool(name string, def bool) bool {
	if v, ok := LookupEnv(name); ok {
		return ParseBool(v)
	}
	return def
}

func EnvInt(name string, def int) int {
	if v, ok := LookupEnv(name); ok {
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			return n
		}
	}
	return def
}

func EnvString(name string, def string) string {
	if v, ok := LookupEnv(name); ok {
		return v
	}
	return def
}
