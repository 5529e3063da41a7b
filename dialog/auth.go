package dialog

import (
	"fmt"

	"github.com/icholy/digest"
	"github.com/sipcore/dialogcore/sip"
)

// Credentials holds the username/password a caller supplies to answer a
// digest challenge.
type Credentials struct {
	Username string
	Password string
}

// BuildChallengeResponse answers a 401/407 digest challenge on res by
// computing the matching Authorization/Proxy-Authorization header for req
// and bumping its CSeq, the same way a challenged INVITE is retried in
// RFC 3261 §22.2. It does not send the request or touch dialog state; the
// caller re-sends the returned request and feeds the eventual response back
// through OnIncomingResponse like any other attempt.
func BuildChallengeResponse(req *sip.Request, res *sip.Response, creds Credentials) (*sip.Request, error) {
	authHeaderName := "WWW-Authenticate"
	replyHeaderName := "Authorization"
	if res.StatusCode == 407 {
		authHeaderName = "Proxy-Authenticate"
		replyHeaderName = "Proxy-Authorization"
	}

	challenge := res.GetHeader(authHeaderName)
	if challenge == nil {
		return nil, fmt.Errorf("dialog: challenge response %d missing %s header", res.StatusCode, authHeaderName)
	}

	chal, err := digest.ParseChallenge(challenge.Value())
	if err != nil {
		return nil, fmt.Errorf("dialog: parsing challenge: %w", err)
	}

	cred, err := digest.Digest(chal, digest.Options{
		Method:   req.Method.String(),
		URI:      req.Recipient.String(),
		Username: creds.Username,
		Password: creds.Password,
	})
	if err != nil {
		return nil, fmt.Errorf("dialog: computing digest: %w", err)
	}

	if cseq, ok := req.CSeq(); ok {
		cseq.SeqNo++
	}
	req.RemoveHeader(replyHeaderName)
	req.AppendHeader(sip.NewHeader(replyHeaderName, cred.String()))
	req.RemoveHeader("Via")
	return req, nil
}
