/*************************************************************************
 * Copyright 2017 Gravwell, Inc. All rights reserved.
 * Contact: <legal@gravwell.io>
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

// Package config loads the ubridge INI configuration file using the same
// size-capped read + gcfg decode idiom as the teacher's ingest config loader.
package config

import (
	"bytes"
	"errors"
	"io"
	"os"

	"github.com/gravwell/gcfg"
)

const (
	kb            = 1024
	mb            = 1024 * kb
	maxConfigSize int64 = 4 * mb
)

var (
	ErrConfigFileTooLarge = errors.New("config file is too large")
	ErrFailedFileRead     = errors.New("failed to read entire config file")
)

// FileConfig mirrors the INI structure in spec.md §6: one [Bridge "name"]
// section per bridge, with a key per NIO slot/filter/capture option.
type FileConfig struct {
	Bridge map[string]*BridgeSection
}

// BridgeSection holds the raw string values of one [Bridge "name"] stanza.
// Every key is optional; the caller decides which slots are present and
// dispatches to the matching nio constructor.
type BridgeSection struct {
	Source_Udp      string
	Destination_Udp string

	Source_Unix      string
	Destination_Unix string

	Source_Ethernet      string
	Destination_Ethernet string

	Source_Tap      string
	Destination_Tap string

	Source_Linux_Raw      string
	Destination_Linux_Raw string

	Source_Fusion_Vmnet      string
	Destination_Fusion_Vmnet string

	Pcap_File     string
	Pcap_Protocol string
	Pcap_Filter   string
}

// LoadConfigFile opens a config file, checks the file size, and decodes it
// using LoadConfigBytes.
func LoadConfigFile(p string) (fc FileConfig, err error) {
	var fin *os.File
	var fi os.FileInfo
	var n int64
	if fin, err = os.Open(p); err != nil {
		return
	}
	defer fin.Close()
	if fi, err = fin.Stat(); err != nil {
		return
	} else if fi.Size() > maxConfigSize {
		err = ErrConfigFileTooLarge
		return
	}

	bb := bytes.NewBuffer(nil)
	if n, err = io.Copy(bb, fin); err != nil {
		return
	} else if n != fi.Size() {
		err = ErrFailedFileRead
		return
	}
	return LoadConfigBytes(bb.Bytes())
}

// LoadConfigBytes parses the contents of b into a FileConfig.
func LoadConfigBytes(b []byte) (fc FileConfig, err error) {
	if int64(len(b)) > maxConfigSize {
		err = ErrConfigFileTooLarge
		return
	}
	err = gcfg.ReadStringInto(&fc, string(b))
	return
}
