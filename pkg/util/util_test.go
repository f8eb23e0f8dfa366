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

package util

import (
	"os"
	"testing"
	"time"

	"github.com/BurntSushi/toml"
)

func TestParseBool(t *testing.T) {
	tests := []struct {
		in   string
		want bool
	}{
		{"1", true},
		{"true", true},
		{"TRUE", true},
		{"Yes", true},
		{" yes ", true},
		{"0", false},
		{"false", false},
		{"no", false},
		{"", false},
		{"on", false},
	}
	for _, tc := range tests {
		if got := ParseBool(tc.in); got != tc.want {
			t.Errorf("ParseBool(%q) = %v, want %v", tc.in, got, tc.want)
		}
	}
}

func TestEnvHelpers(t *testing.T) {
	t.Setenv("MCBUS_UTIL_TEST_BOOL", "yes")
	t.Setenv("MCBUS_UTIL_TEST_INT", "3")
	t.Setenv("MCBUS_UTIL_TEST_EMPTY", "")
	os.Unsetenv("MCBUS_UTIL_TEST_UNSET")

	if !EnvBool("MCBUS_UTIL_TEST_BOOL", false) {
		t.Error("expected true")
	}
	if EnvBool("MCBUS_UTIL_TEST_EMPTY", true) != true {
		t.Error("empty variable should fall back to default")
	}
	if n := EnvInt("MCBUS_UTIL_TEST_INT", 0); n != 3 {
		t.Errorf("EnvInt = %d, want 3", n)
	}
	if n := EnvInt("MCBUS_UTIL_TEST_BOOL", 7); n != 7 {
		t.Errorf("non numeric value should fall back to default, got %d", n)
	}
	if s := EnvString("MCBUS_UTIL_TEST_UNSET", "def"); s != "def" {
		t.Errorf("EnvString = %q", s)
	}
}

func TestDurationToml(t *testing.T) {
	var cfg struct {
		Timeout Duration
	}
	if _, err := toml.Decode(`Timeout = "250ms"`, &cfg); err != nil {
		t.Fatal(err)
	}
	if cfg.Timeout.Duration != 250*time.Millisecond {
		t.Errorf("got %s", cfg.Timeout.Duration)
	}
	text, _ := cfg.Timeout.MarshalText()
	if string(text) != "250ms" {
		t.Errorf("MarshalText = %s", text)
	}
}
