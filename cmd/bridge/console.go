package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/benmeehan/command-bridge/internal/models"
	"github.com/benmeehan/command-bridge/internal/services"
	"github.com/benmeehan/command-bridge/internal/state_managers"
	"github.com/benmeehan/command-bridge/pkg/api"
	"github.com/rs/zerolog"
)

const consoleHelp = `commands:
  devices            list registered devices
  select <id>        select a device and request its status
  send <command>     send a command to the selected device
  status             show the last status of the selected device
  files              list downloadable files of the selected device
  history            show the last recorded command of the selected device
  quit               exit`

// console is the interactive operator loop over one operator session.
type console struct {
	devices   *api.Client
	operator  *services.OperatorSession
	journal   *state_managers.CommandJournal // nil when no journal file is configured
	out       io.Writer
	apiWindow time.Duration
	logger    zerolog.Logger
}

func newConsole(devices *api.Client, operator *services.OperatorSession, journal *state_managers.CommandJournal, out io.Writer, apiWindow time.Duration, logger zerolog.Logger) *console {
	c := &console{
		devices:   devices,
		operator:  operator,
		journal:   journal,
		out:       out,
		apiWindow: apiWindow,
		logger:    logger,
	}
	operator.Session.OnStatus(func(line string) {
		fmt.Fprintf(c.out, "[%s] %s\n", operator.Session.SelectedDevice(), line)
	})
	return c
}

// Run reads commands from in until quit, end of input or ctx is done.
func (c *console) Run(ctx context.Context, in io.Reader) error {
	fmt.Fprintln(c.out, consoleHelp)

	lines := make(chan string)
	scanErr := make(chan error, 1)
	go func() {
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
		scanErr <- scanner.Err()
		close(lines)
	}()

	for {
		fmt.Fprint(c.out, "> ")

		var line string
		select {
		case <-ctx.Done():
			fmt.Fprintln(c.out)
			return nil
		case next, ok := <-lines:
			if !ok {
				return <-scanErr
			}
			line = next
		}

		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}
		if fields[0] == "quit" || fields[0] == "exit" {
			return nil
		}
		if err := c.execute(ctx, fields[0], fields[1:]); err != nil {
			fmt.Fprintf(c.out, "error: %v\n", err)
		}
	}
}

func (c *console) execute(ctx context.Context, name string, args []string) error {
	switch name {
	case "devices":
		return c.listDevices(ctx)
	case "select":
		if len(args) != 1 {
			return fmt.Errorf("usage: select <id>")
		}
		return c.selectDevice(ctx, args[0])
	case "send":
		if len(args) != 1 {
			return fmt.Errorf("usage: send <command>")
		}
		return c.send(args[0])
	case "status":
		return c.printStatus()
	case "files":
		return c.listFiles(ctx)
	case "history":
		return c.printHistory()
	case "help":
		fmt.Fprintln(c.out, consoleHelp)
		return nil
	default:
		return fmt.Errorf("unknown command %q", name)
	}
}

func (c *console) listDevices(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, c.apiWindow)
	defer cancel()

	ids, err := c.devices.GetDevices(ctx)
	if err != nil {
		return err
	}
	if len(ids) == 0 {
		fmt.Fprintln(c.out, "no devices registered")
		return nil
	}
	for _, id := range ids {
		fmt.Fprintln(c.out, id)
	}
	return nil
}

func (c *console) selectDevice(ctx context.Context, id string) error {
	ctx, cancel := context.WithTimeout(ctx, c.apiWindow)
	defer cancel()

	device, err := c.devices.GetDevice(ctx, id)
	if err != nil {
		return err
	}
	if device == nil {
		return fmt.Errorf("device %s not found", id)
	}

	c.operator.Session.SelectDevice(device.ID)
	c.operator.Bridge.Prime(device.ID)
	return c.printStatus()
}

func (c *console) send(raw string) error {
	deviceID := c.operator.Session.SelectedDevice()
	if deviceID == "" {
		return fmt.Errorf("no device selected")
	}
	command, err := models.ParseCommand(raw)
	if err != nil {
		return err
	}

	sentAt := time.Now()
	c.operator.Bridge.SendCommand(deviceID, command)
	c.record(deviceID, command, sentAt)
	return c.printStatus()
}

func (c *console) record(deviceID string, command models.Command, sentAt time.Time) {
	if c.journal == nil {
		return
	}
	outcome := models.CommandOutcome{
		DeviceID:  deviceID,
		Command:   command,
		Result:    c.operator.Session.StatusLine(),
		Responded: c.operator.Session.HasLastStatus(),
		SentAt:    sentAt.UTC(),
	}
	if err := c.journal.Record(outcome); err != nil {
		c.logger.Warn().Err(err).Str("device_id", deviceID).Msg("Failed to record command outcome")
	}
}

func (c *console) printHistory() error {
	deviceID := c.operator.Session.SelectedDevice()
	if deviceID == "" {
		return fmt.Errorf("no device selected")
	}
	if c.journal == nil {
		fmt.Fprintln(c.out, "journal disabled")
		return nil
	}
	outcome, ok, err := c.journal.Last(deviceID)
	if err != nil {
		return err
	}
	if !ok {
		fmt.Fprintln(c.out, "no commands recorded")
		return nil
	}
	fmt.Fprintf(c.out, "%s  %s  responded=%t  %s\n", outcome.SentAt.Format(time.RFC3339), outcome.Command, outcome.Responded, outcome.Result)
	return nil
}

func (c *console) printStatus() error {
	record, ok := c.operator.Session.LastStatus()
	if !ok {
		fmt.Fprintln(c.out, "no status received")
		return nil
	}
	printRecord(c.out, record)
	return nil
}

func (c *console) listFiles(ctx context.Context) error {
	deviceID := c.operator.Session.SelectedDevice()
	if deviceID == "" {
		return fmt.Errorf("no device selected")
	}
	record, ok := c.operator.Session.LastStatus()
	linked := ok && record.HasDeviceAddress()

	ctx, cancel := context.WithTimeout(ctx, c.apiWindow)
	defer cancel()

	files, err := c.devices.GetDeviceFiles(ctx, deviceID)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		fmt.Fprintln(c.out, "no files")
		return nil
	}

	if !linked {
		fmt.Fprintln(c.out, "device address unknown, downloads unavailable")
		for _, f := range files {
			fmt.Fprintln(c.out, f.VideoName)
		}
		return nil
	}

	device, err := c.devices.GetDevice(ctx, deviceID)
	if err != nil {
		return err
	}
	if device == nil {
		return fmt.Errorf("device %s not found", deviceID)
	}
	for _, f := range files {
		fmt.Fprintf(c.out, "%s  %s\n", f.VideoName, device.DownloadURL(f))
	}
	return nil
}

func printRecord(out io.Writer, record models.StatusRecord) {
	address := "unknown"
	if record.HasDeviceAddress() {
		address = *record.DeviceAddress
	}
	streaming := "not streaming"
	if record.IsStreaming() {
		streaming = record.StreamingAddress
	}

	fmt.Fprintf(out, "device:     %s\n", record.DeviceID)
	fmt.Fprintf(out, "reported:   %s\n", record.Time)
	fmt.Fprintf(out, "address:    %s\n", address)
	fmt.Fprintf(out, "streaming:  %s\n", streaming)
	fmt.Fprintf(out, "saving:     %v\n", record.SaveCurrentFiles)
	fmt.Fprintf(out, "inference:  %v\n", record.InferenceRuntime)
	fmt.Fprintf(out, "fileserver: %v\n", record.FileserverRuntime)
}
