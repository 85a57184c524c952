package client

import (
	"context"
	"time"

	"github.com/player-project/playerd/pkg/auth"
	plog "github.com/player-project/playerd/pkg/log"
	"github.com/player-project/playerd/pkg/message"
	"github.com/player-project/playerd/pkg/wire"
)

// Handle processes one message read from the client. A non-nil error means
// the connection must be closed.
func (s *Session) Handle(ctx context.Context, hdr wire.Header, payload []byte) error {
	s.mgr.config.Metrics.RecordMessageIn(hdr.Type.String())
	s.emitMessage(plog.DirectionIn, hdr)

	if s.AuthPending() {
		return s.handleAuth(hdr, payload)
	}

	switch hdr.Type {
	case wire.MsgReq:
		if hdr.Interface == wire.InterfacePlayer {
			return s.handlePlayerReq(ctx, hdr, payload)
		}
		return s.forwardRequest(hdr, payload)
	case wire.MsgCmd:
		s.forwardCommand(hdr, payload)
		return nil
	default:
		s.mgr.debugLog("ignoring message", "session", s.id, "type", hdr.Type.String())
		return nil
	}
}

// handleAuth accepts only a matching AUTH request while authentication is
// pending.
func (s *Session) handleAuth(hdr wire.Header, payload []byte) error {
	if hdr.Type == wire.MsgReq && hdr.Interface == wire.InterfacePlayer && hdr.Subtype == wire.PlayerAuth {
		req, err := wire.Decode[wire.AuthReq](payload)
		if err == nil && auth.FromBytes(req.Key).Equal(s.mgr.config.Key) {
			s.mu.Lock()
			s.authPending = false
			s.mu.Unlock()
			s.emitState(plog.StateEntitySession, "AUTH_PENDING", "OPEN")
			return s.reply(hdr, wire.MsgRespAck, nil)
		}
	}
	s.mgr.warnLog("failed authentication, closing connection", "session", s.id, "remote", s.remote)
	s.emitState(plog.StateEntitySession, "AUTH_PENDING", "AUTH_FAILED")
	return ErrAuthFailed
}

// handlePlayerReq answers the requests addressed to the server itself.
func (s *Session) handlePlayerReq(ctx context.Context, hdr wire.Header, payload []byte) error {
	switch hdr.Subtype {
	case wire.PlayerDevList:
		entries := s.mgr.devices.List()
		list := wire.DevList{Devices: make([]wire.DeviceAddr, len(entries))}
		for i, e := range entries {
			list.Devices[i] = e.Addr
		}
		return s.ack(hdr, list)

	case wire.PlayerDriverInfo:
		req, err := wire.Decode[wire.DriverInfo](payload)
		if err != nil {
			return s.nack(hdr, "malformed DRIVERINFO", err)
		}
		req.Addr = s.fillPort(req.Addr)
		entry, err := s.mgr.devices.Entry(req.Addr)
		if err != nil {
			return s.nack(hdr, "DRIVERINFO for unknown device", err)
		}
		return s.ack(hdr, wire.DriverInfo{Addr: req.Addr, Name: entry.DriverName})

	case wire.PlayerDev:
		req, err := wire.Decode[wire.DeviceReq](payload)
		if err != nil {
			return s.nack(hdr, "malformed DEV", err)
		}
		if !req.Access.IsOpen() && req.Access != wire.AccessClose {
			return s.nack(hdr, "bad access mode "+req.Access.String(), nil)
		}
		req.Addr = s.fillPort(req.Addr)
		resp := wire.DeviceResp{Addr: req.Addr, Access: s.setAccess(ctx, req.Addr, req.Access)}
		if entry, err := s.mgr.devices.Entry(req.Addr); err == nil {
			resp.DriverName = entry.DriverName
		}
		return s.ack(hdr, resp)

	case wire.PlayerData:
		if !s.requestData() {
			return s.nack(hdr, "data request outside PULL mode", nil)
		}
		return s.reply(hdr, wire.MsgRespAck, nil)

	case wire.PlayerDataMode:
		req, err := wire.Decode[wire.DataModeReq](payload)
		if err != nil || !req.Mode.IsValid() {
			return s.nack(hdr, "unknown data mode", err)
		}
		s.setMode(req.Mode)
		return s.reply(hdr, wire.MsgRespAck, nil)

	case wire.PlayerDataFreq:
		req, err := wire.Decode[wire.DataFreqReq](payload)
		if err != nil || req.Frequency == 0 {
			return s.nack(hdr, "bad data frequency", err)
		}
		s.setFrequency(req.Frequency)
		return s.reply(hdr, wire.MsgRespAck, nil)

	case wire.PlayerAuth:
		return s.nack(hdr, "unnecessary authentication request", nil)

	case wire.PlayerNameService:
		req, err := wire.Decode[wire.NameServiceReq](payload)
		if err != nil || req.Name == "" {
			return s.nack(hdr, "malformed NAMESERVICE", err)
		}
		port, err := s.mgr.resolve(ctx, req.Name)
		if err != nil {
			return s.nack(hdr, "cannot resolve "+req.Name, err)
		}
		req.Port = port
		return s.ack(hdr, req)

	case wire.PlayerIdent:
		return s.ack(hdr, wire.IdentResp{
			Ident:   wire.IdentPrefix + s.mgr.config.Version,
			Version: s.mgr.config.Version,
		})

	default:
		return s.nack(hdr, "unknown server request", nil)
	}
}

// forwardRequest queues a request on the driver of an open device. The reply
// comes back through the outbox.
func (s *Session) forwardRequest(hdr wire.Header, payload []byte) error {
	addr := hdr.Addr(s.mgr.config.Port)
	s.mu.Lock()
	sub, ok := s.subs[addr]
	s.mu.Unlock()
	if !ok {
		s.mgr.debugLog("request to device not open", "session", s.id, "addr", addr.String())
		return s.reply(hdr, wire.MsgRespErr, nil)
	}
	if len(payload) > wire.MaxReqRepSize {
		return s.nack(hdr, "request too large", nil)
	}

	msg, err := message.New(hdr, payload, s.outbox)
	if err != nil {
		return s.reply(hdr, wire.MsgRespErr, nil)
	}
	if _, err := sub.drv.InQueue().Push(msg); err != nil {
		msg.Release()
		s.mgr.warnLog("driver queue full, request refused", "session", s.id, "addr", addr.String(), "error", err)
		return s.reply(hdr, wire.MsgRespErr, nil)
	}
	return nil
}

// forwardCommand writes a command to a device the client may drive.
// Commands without permission are dropped.
func (s *Session) forwardCommand(hdr wire.Header, payload []byte) {
	addr := hdr.Addr(s.mgr.config.Port)
	s.mu.Lock()
	sub, ok := s.subs[addr]
	canWrite := ok && sub.access.CanWrite()
	s.mu.Unlock()
	if !canWrite {
		s.mgr.debugLog("no permission to command", "session", s.id, "addr", addr.String())
		return
	}
	entry, err := s.mgr.devices.Entry(addr)
	if err != nil || !entry.Access.CanWrite() {
		s.mgr.debugLog("device does not accept commands", "session", s.id, "addr", addr.String())
		return
	}
	if err := sub.drv.PutCommand(addr, hdr.Subtype, payload, time.Time{}); err != nil {
		s.mgr.debugLog("command dropped", "session", s.id, "addr", addr.String(), "error", err)
	}
}

func (s *Session) fillPort(addr wire.DeviceAddr) wire.DeviceAddr {
	if addr.Port == 0 {
		addr.Port = s.mgr.config.Port
	}
	return addr
}

// ack encodes v and answers with ACK, or NACK when v does not fit a reply.
func (s *Session) ack(req wire.Header, v any) error {
	data, err := wire.Encode(v, wire.MaxReqRepSize)
	if err != nil {
		return s.nack(req, "cannot encode reply", err)
	}
	return s.reply(req, wire.MsgRespAck, data)
}

func (s *Session) nack(req wire.Header, reason string, err error) error {
	if err != nil {
		s.mgr.debugLog(reason, "session", s.id, "subtype", req.Subtype, "error", err)
	} else {
		s.mgr.debugLog(reason, "session", s.id, "subtype", req.Subtype)
	}
	return s.reply(req, wire.MsgRespNack, nil)
}
