package types

import "fmt"

type SFUError struct {
	Code        int32  `json:"code"`
	Message     string `json:"message"`
	ShouldRetry bool   `json:"shouldRetry,omitempty"`
}

func (e *SFUError) Error() string {
	return fmt.Sprintf("sfu error %d: %s", e.Code, e.Message)
}

type SetPublisherRequest struct {
	SDP       string      `json:"sdp"`
	SessionID string      `json:"sessionId"`
	Tracks    []TrackInfo `json:"tracks"`
}

type SetPublisherResponse struct {
	SDP        string    `json:"sdp"`
	SessionID  string    `json:"sessionId"`
	ICERestart bool      `json:"iceRestart,omitempty"`
	Error      *SFUError `json:"error,omitempty"`
}

type SendAnswerRequest struct {
	PeerType  PeerType `json:"peerType"`
	SDP       string   `json:"sdp"`
	SessionID string   `json:"sessionId"`
}

type SendAnswerResponse struct {
	Error *SFUError `json:"error,omitempty"`
}

type UpdateSubscriptionsRequest struct {
	SessionID string                     `json:"sessionId"`
	Tracks    []TrackSubscriptionDetails `json:"tracks"`
}

type UpdateSubscriptionsResponse struct {
	Error *SFUError `json:"error,omitempty"`
}

type ICERestartRequest struct {
	SessionID string   `json:"sessionId"`
	PeerType  PeerType `json:"peerType"`
}

type ICERestartResponse struct {
	Error *SFUError `json:"error,omitempty"`
}

type ICETrickleRequest struct {
	PeerType     PeerType `json:"peerType"`
	ICECandidate string   `json:"iceCandidate"`
	SessionID    string   `json:"sessionId"`
}

type ICETrickleResponse struct {
	Error *SFUError `json:"error,omitempty"`
}
