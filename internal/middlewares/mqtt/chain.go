package mqtt_middleware

import (
	mqttLib "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog"
)

// MessageMiddleware wraps an inbound message handler.
type MessageMiddleware func(next mqttLib.MessageHandler) mqttLib.MessageHandler

// Chain wraps handler with middlewares. The first middleware sees each
// message first.
func Chain(handler mqttLib.MessageHandler, middlewares ...MessageMiddleware) mqttLib.MessageHandler {
	for i := len(middlewares) - 1; i >= 0; i-- {
		handler = middlewares[i](handler)
	}
	return handler
}

// Logging records every inbound message at debug level.
func Logging(logger zerolog.Logger) MessageMiddleware {
	return func(next mqttLib.MessageHandler) mqttLib.MessageHandler {
		return func(client mqttLib.Client, msg mqttLib.Message) {
			logger.Debug().
				Str("topic", msg.Topic()).
				Int("bytes", len(msg.Payload())).
				Uint16("message_id", msg.MessageID()).
				Msg("Inbound message")
			next(client, msg)
		}
	}
}

// MaxPayload drops messages larger than limit bytes.
func MaxPayload(limit int, logger zerolog.Logger) MessageMiddleware {
	return func(next mqttLib.MessageHandler) mqttLib.MessageHandler {
		return func(client mqttLib.Client, msg mqttLib.Message) {
			if size := len(msg.Payload()); size > limit {
				logger.Warn().Str("topic", msg.Topic()).Int("bytes", size).Int("limit", limit).Msg("Dropping oversized message")
				return
			}
			next(client, msg)
		}
	}
}
