// Package protocol defines the messages exchanged between a panel page and
// the host. Every message is a JSON object whose "command" field selects
// the variant. Requests flow from the page to the host, responses from the
// host to the page.
package protocol

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/conneroisu/visualtree/internal/errors"
	"github.com/conneroisu/visualtree/internal/scanner"
)

// Command is the wire tag of a message.
type Command string

const (
	CommandGetFiles     Command = "getFiles"
	CommandShowSelected Command = "showSelected"
	CommandError        Command = "error"
	CommandSetFiles     Command = "setFiles"
)

// Request is an inbound message. The set of implementations is closed:
// ListFilesRequest, ShowSelectionRequest, ErrorReport and UnknownRequest.
type Request interface {
	Command() Command
	isRequest()
}

// ListFilesRequest asks for the workspace tree.
type ListFilesRequest struct{}

// ShowSelectionRequest asks for the selected paths to be aggregated.
type ShowSelectionRequest struct {
	Paths []string
}

// ErrorReport carries an error raised inside the page.
type ErrorReport struct {
	Message string
}

// UnknownRequest is any well-formed message with an unrecognised command.
type UnknownRequest struct {
	Kind string
}

func (ListFilesRequest) Command() Command     { return CommandGetFiles }
func (ShowSelectionRequest) Command() Command { return CommandShowSelected }
func (ErrorReport) Command() Command          { return CommandError }
func (u UnknownRequest) Command() Command     { return Command(u.Kind) }

func (ListFilesRequest) isRequest()     {}
func (ShowSelectionRequest) isRequest() {}
func (ErrorReport) isRequest()          {}
func (UnknownRequest) isRequest()       {}

// Response is an outbound message. FileListResponse is the only variant.
type Response interface {
	Command() Command
	isResponse()
}

// FileListResponse delivers the workspace tree. Files is nil when no
// workspace is open.
type FileListResponse struct {
	Files *scanner.TreeNode
}

func (FileListResponse) Command() Command { return CommandSetFiles }
func (FileListResponse) isResponse()      {}

// requestWire is the outbound encoding of a request.
type requestWire struct {
	Command string   `json:"command"`
	Paths   []string `json:"paths,omitempty"`
	Message string   `json:"message,omitempty"`
}

// responseWire is the encoding of a response. files is always present.
type responseWire struct {
	Command string            `json:"command"`
	Files   *scanner.TreeNode `json:"files"`
}

// inbound defers field decoding until the command is known.
type inbound struct {
	Command *string         `json:"command"`
	Paths   json.RawMessage `json:"paths"`
	Message json.RawMessage `json:"message"`
}

// DecodeRequest parses an inbound message. Malformed input yields a
// protocol error; an unknown command yields UnknownRequest.
func DecodeRequest(data []byte) (Request, error) {
	var in inbound
	if err := json.Unmarshal(data, &in); err != nil {
		return nil, errors.NewProtocolError(errors.CodeMalformedMessage, "message is not a JSON object", err)
	}
	if in.Command == nil {
		return nil, errors.NewProtocolError(errors.CodeMalformedMessage, "message has no command", nil)
	}

	switch Command(*in.Command) {
	case CommandGetFiles:
		return ListFilesRequest{}, nil

	case CommandShowSelected:
		var paths []string
		if len(in.Paths) > 0 && !bytes.Equal(in.Paths, []byte("null")) {
			if err := json.Unmarshal(in.Paths, &paths); err != nil {
				return nil, errors.NewProtocolError(errors.CodeMalformedMessage, "paths must be an array of strings", err)
			}
		}
		return ShowSelectionRequest{Paths: paths}, nil

	case CommandError:
		var message string
		if len(in.Message) > 0 && !bytes.Equal(in.Message, []byte("null")) {
			if err := json.Unmarshal(in.Message, &message); err != nil {
				return nil, errors.NewProtocolError(errors.CodeMalformedMessage, "message must be a string", err)
			}
		}
		return ErrorReport{Message: message}, nil

	default:
		return UnknownRequest{Kind: *in.Command}, nil
	}
}

// EncodeRequest serialises a request, for page-side clients and tests.
func EncodeRequest(r Request) ([]byte, error) {
	wire := requestWire{Command: string(r.Command())}
	switch req := r.(type) {
	case ListFilesRequest, UnknownRequest:
	case ShowSelectionRequest:
		wire.Paths = req.Paths
	case ErrorReport:
		wire.Message = req.Message
	default:
		return nil, fmt.Errorf("unsupported request %T", r)
	}
	return json.Marshal(wire)
}

// EncodeResponse serialises a response.
func EncodeResponse(r Response) ([]byte, error) {
	switch resp := r.(type) {
	case FileListResponse:
		return json.Marshal(responseWire{Command: string(CommandSetFiles), Files: resp.Files})
	default:
		return nil, fmt.Errorf("unsupported response %T", r)
	}
}

// DecodeResponse parses an outbound message.
func DecodeResponse(data []byte) (Response, error) {
	var env responseWire
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, errors.NewProtocolError(errors.CodeMalformedMessage, "message is not a JSON object", err)
	}
	switch Command(env.Command) {
	case CommandSetFiles:
		return FileListResponse{Files: env.Files}, nil
	default:
		return nil, errors.NewProtocolError(errors.CodeMalformedMessage, "unknown response command "+env.Command, nil)
	}
}
