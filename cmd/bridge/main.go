package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/benmeehan/command-bridge/internal/models"
	"github.com/benmeehan/command-bridge/internal/services"
	"github.com/benmeehan/command-bridge/internal/state_managers"
	"github.com/benmeehan/command-bridge/internal/utils"
	"github.com/benmeehan/command-bridge/pkg/api"
	"github.com/benmeehan/command-bridge/pkg/file"
	"github.com/benmeehan/command-bridge/pkg/mqtt"
	"github.com/rs/zerolog"
	flag "github.com/spf13/pflag"
)

const operatorSessionID = "console"

func main() {
	configPath := flag.String("config", "configs/config.yaml", "path to the configuration file")
	deviceID := flag.String("device", "", "device to address")
	command := flag.String("command", "", "command to send to --device and exit")
	listDevices := flag.Bool("list-devices", false, "list registered devices and exit")
	flag.Parse()

	fileClient := file.NewFileService()

	// Load configuration from file
	config, err := utils.LoadConfig(*configPath, fileClient)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log, logCloser := utils.NewLogger(config)
	defer logCloser.Close()

	devices := api.NewClient(config.API.BaseURL, config.API.Timeout, config.API.CacheTTL, log)
	registry := services.NewSessionRegistry(config.MQTT.ClientID, bridgeOptions(config), dialerFactory(config, fileClient, log), log)
	defer registry.CloseAll()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	operator := registry.Open(operatorSessionID)
	var journal *state_managers.CommandJournal
	if config.Bridge.JournalFile != "" {
		journal = state_managers.NewCommandJournal(config.Bridge.JournalFile, log)
	}
	cli := newConsole(devices, operator, journal, os.Stdout, config.API.Timeout, log)

	switch {
	case *listDevices:
		err = cli.listDevices(ctx)
	case *command != "":
		err = sendOnce(ctx, cli, *deviceID, *command)
	default:
		if *deviceID != "" {
			if err = cli.selectDevice(ctx, *deviceID); err != nil {
				break
			}
		}
		err = cli.Run(ctx, os.Stdin)
	}

	if err != nil {
		log.Error().Err(err).Msg("Command bridge failed")
		registry.CloseAll()
		logCloser.Close()
		os.Exit(1)
	}
	log.Info().Msg("Shutting down gracefully...")
}

func sendOnce(ctx context.Context, cli *console, deviceID, command string) error {
	if deviceID == "" {
		return fmt.Errorf("--command requires --device")
	}
	if _, err := models.ParseCommand(command); err != nil {
		return err
	}

	device, err := cli.devices.GetDevice(ctx, deviceID)
	if err != nil {
		return err
	}
	if device == nil {
		return fmt.Errorf("device %s not found", deviceID)
	}

	cli.operator.Session.SelectDevice(device.ID)
	return cli.send(command)
}

func bridgeOptions(config *utils.Config) services.BridgeOptions {
	return services.BridgeOptions{
		CommandsTopic:   config.Bridge.CommandsTopic,
		StatusTopic:     config.Bridge.StatusTopic,
		PublishAttempts: config.Bridge.PublishAttempts,
		WaitBudget:      config.Bridge.WaitBudget,
		PumpSlice:       config.Bridge.PumpSlice,
	}
}

// dialerFactory connects each operator session to the configured broker
// under its own client id.
func dialerFactory(config *utils.Config, fileClient file.FileOperations, log zerolog.Logger) services.DialerFactory {
	return func(clientID string) services.Dialer {
		opts := mqtt.Options{
			Host:               config.MQTT.Broker,
			Port:               config.MQTT.Port,
			ClientID:           clientID,
			Username:           config.MQTT.Username,
			Password:           config.MQTT.Password,
			CACertificate:      config.MQTT.CACertificate,
			InsecureSkipVerify: config.MQTT.InsecureSkipVerify,
			QOS:                byte(config.MQTT.QOS),
			KeepAlive:          config.MQTT.KeepAlive,
			ConnectTimeout:     config.MQTT.ConnectTimeout,
		}
		log.Info().Str("client_id", clientID).Str("broker", opts.BrokerURL()).Msg("Using MQTT client")
		return services.NewMQTTDialer(opts, fileClient, log)
	}
}
