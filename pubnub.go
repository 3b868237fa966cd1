package main

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	pubnubgo "github.com/pubnub/go/v7"
)

var _ Pubnub = (*pubnub)(nil)

type PubNubConfig struct {
	PublishKey    string `mapstructure:"publish_key"`
	SubscribeKey  string `mapstructure:"subscribe_key"`
	SecretKey     string `mapstructure:"secret_key"`
	UserID        string `mapstructure:"user_id"`
	DisplayUserID string `mapstructure:"display_user_id"`
}

func (c PubNubConfig) Enabled() bool {
	return c.PublishKey != "" && c.SubscribeKey != ""
}

func NewPubnub(pnCfg *PubNubConfig) (Pubnub, error) {
	if pnCfg == nil {
		return nil, fmt.Errorf("[NewPubnub] pnCfg: must not be nil")
	}

	cfg := pubnubgo.NewConfigWithUserId(pubnubgo.UserId(pnCfg.UserID))
	cfg.PublishKey = pnCfg.PublishKey
	cfg.SubscribeKey = pnCfg.SubscribeKey
	cfg.SecretKey = pnCfg.SecretKey

	return &pubnub{
		pn:            pubnubgo.NewPubNub(cfg),
		displayUserID: pnCfg.DisplayUserID,
	}, nil
}

// Pubnub pushes messages to display boards.
type Pubnub interface {
	Publish(ctx context.Context, displayID string, messagePayload any) (string, error)
	GenGrantToken(ctx context.Context) (string, error)
}

type pubnub struct {
	pn            *pubnubgo.PubNub
	displayUserID string
}

func displayChannel(displayID string) string {
	return fmt.Sprintf("display-%s", displayID)
}

// Publish sends the payload to the display's channel and returns the
// publish timetoken.
func (p *pubnub) Publish(ctx context.Context, displayID string, messagePayload any) (string, error) {
	messageJSON, err := setPrepareMessage(messagePayload)
	if err != nil {
		return "", err
	}

	resp, _, err := p.pn.PublishWithContext(ctx).
		Channel(displayChannel(displayID)).
		Message(messageJSON).
		Execute()
	if err != nil {
		return "", fmt.Errorf("p.pn.Publish(%v): %w", displayChannel(displayID), err)
	}

	return strconv.FormatInt(resp.Timestamp, 10), nil
}

// GenGrantToken issues a read token for every display channel, valid for an hour.
func (p *pubnub) GenGrantToken(ctx context.Context) (string, error) {
	grantToken := p.pn.GrantTokenWithContext(ctx)
	permissions := map[string]pubnubgo.ChannelPermissions{
		"^display-[A-Za-z0-9_-]*$": {
			Read: true,
		},
	}

	token, _, err := grantToken.TTL(60).AuthorizedUUID(p.displayUserID).ChannelsPattern(permissions).Execute()
	if err != nil {
		return "", err
	}

	return token.Data.Token, nil
}

func setPrepareMessage(messagePayload any) (string, error) {
	messageJSON, err := json.Marshal(messagePayload)
	if err != nil {
		return "", err
	}

	return string(messageJSON), nil
}
