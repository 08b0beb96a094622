package internal

import (
	"io"
	"log"
	"os"
)

const logFileMode = os.O_WRONLY | os.O_APPEND | os.O_CREATE
const logFilePerm = 0644

// logTarget is a logger output that is either stdout or an open file.
type logTarget struct {
	setOutput func(w io.Writer)
	file      *os.File
}

// switchTo points the target at path, or at stdout when path is empty. The
// previous file is closed only after the new one opened.
func (lt *logTarget) switchTo(path string) error {
	if path == "" {
		if lt.file != nil {
			lt.setOutput(os.Stdout)
			lt.file.Close()
			lt.file = nil
		}

		return nil
	}

	if lt.file != nil && lt.file.Name() == path {
		return nil
	}

	file, err := os.OpenFile(path, logFileMode, logFilePerm)
	if err != nil {
		return err
	}

	lt.setOutput(file)

	if lt.file != nil {
		lt.file.Close()
	}

	lt.file = file

	return nil
}

// LogConfiguration follows the Logging section of the live config. The
// standard logger carries errors, ReportLogger carries scenario results.
type LogConfiguration struct {
	configHandle VersionedBoxHandle[*Config]

	ReportLogger *log.Logger

	errorLog  logTarget
	reportLog logTarget
}

func NewLogConfiguration(configHandle VersionedBoxHandle[*Config]) *LogConfiguration {
	reportLogger := log.New(os.Stdout, "", log.LstdFlags)

	return &LogConfiguration{
		configHandle: configHandle,
		ReportLogger: reportLogger,
		errorLog:     logTarget{setOutput: log.SetOutput},
		reportLog:    logTarget{setOutput: reportLogger.SetOutput},
	}
}

func (lc *LogConfiguration) Update() {
	config, changed := lc.configHandle.GetValue()
	if !changed {
		return
	}

	err := lc.errorLog.switchTo(config.ErrorLog)
	if err != nil {
		log.Printf("error: %v", err)
	}

	err = lc.reportLog.switchTo(config.ReportLog)
	if err != nil {
		log.Printf("error: %v", err)
	}
}

// Close returns both loggers to stdout and closes their files.
func (lc *LogConfiguration) Close() {
	lc.errorLog.switchTo("")
	lc.reportLog.switchTo("")
}
