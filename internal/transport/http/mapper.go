package http

import (
	"encoding/json"

	"github.com/MiladJoodi/WebRTC-Video-Conference/internal/core"
	"github.com/MiladJoodi/WebRTC-Video-Conference/internal/proto"
)

// inboundToCommand maps a wire envelope onto a core command. A non-nil
// proto.Error is a rejection the caller should echo back; a non-nil
// error is a malformed frame that terminates the connection.
func inboundToCommand(inbound proto.Inbound) (*core.Command, *proto.Error, error) {
	switch inbound.Type {
	case proto.InboundTypeJoinRoom:
		var join proto.JoinRoomData
		if err := json.Unmarshal(inbound.Data, &join); err != nil {
			return nil, nil, err
		}
		if join.RoomID == "" || join.UserID == "" {
			return nil, &proto.Error{Code: core.ErrCodeBadRequest, Msg: "roomId and userId are required"}, nil
		}
		return &core.Command{
			Kind:   core.CommandJoinRoom,
			Room:   join.RoomID,
			UserID: join.UserID,
			Meta:   core.Metadata{Name: join.Metadata.Name},
		}, nil, nil
	case proto.InboundTypeLeaveRoom:
		return &core.Command{Kind: core.CommandLeaveRoom}, nil, nil
	case proto.InboundTypeSignal:
		var sig proto.SignalData
		if err := json.Unmarshal(inbound.Data, &sig); err != nil {
			return nil, nil, err
		}
		if sig.To == "" {
			return nil, &proto.Error{Code: core.ErrCodeBadRequest, Msg: "to is required"}, nil
		}
		return &core.Command{
			Kind:    core.CommandRelaySignal,
			To:      sig.To,
			Payload: sig.Payload,
		}, nil, nil
	default:
		return nil, &proto.Error{Code: "invalid_message", Msg: "unknown message type"}, nil
	}
}

func outboundFromEvent(event *core.Event) proto.Outbound {
	switch event.Kind {
	case core.EventUserConnected:
		return proto.Outbound{
			Type: proto.OutboundTypeUserConnected,
			Data: proto.UserConnectedData{
				UserID:   event.UserID,
				Metadata: proto.Metadata{Name: event.Meta.Name},
			},
		}
	case core.EventUserDisconnected:
		return proto.Outbound{
			Type: proto.OutboundTypeUserDisconnected,
			Data: proto.UserDisconnectedData{UserID: event.UserID},
		}
	case core.EventSignal:
		return proto.Outbound{
			Type: proto.OutboundTypeSignal,
			Data: proto.SignalEventData{
				From:    event.From,
				Payload: event.Payload,
			},
		}
	case core.EventError:
		return proto.Outbound{
			Type: proto.OutboundTypeError,
			Data: proto.Error{Code: event.Error.Code, Msg: event.Error.Message},
		}
	default:
		return proto.Outbound{Type: proto.OutboundTypeError, Data: proto.Error{
			Code: "internal",
			Msg:  "unmapped event",
		}}
	}
}
