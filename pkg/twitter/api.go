package twitter

import (
	"context"
	"net/url"
	"strconv"
	"strings"

	"github.com/weiland/HourlyImage/pkg/utils/errors"
)

// REST resources, relative to the API version.
const (
	resourceStatusesUpdate  = "statuses/update"
	resourceStatusesDestroy = "statuses/destroy"
	resourceMediaUpload     = "media/upload"
)

// DefaultMediaCategory is the media_category of an uploaded still image.
const DefaultMediaCategory = "tweet_image"

// Coordinates are attached to a status as lat/long.
type Coordinates struct {
	Latitude  float64
	Longitude float64
}

// StatusUpdate describes a new status.
type StatusUpdate struct {
	Status   string
	MediaIDs []string
	// Coordinates is optional; when set the coordinates are displayed.
	Coordinates *Coordinates
}

func (u StatusUpdate) parameters() map[string]string {
	params := map[string]string{
		"status": u.Status,
	}
	if u.Coordinates != nil {
		params["lat"] = strconv.FormatFloat(u.Coordinates.Latitude, 'f', -1, 64)
		params["long"] = strconv.FormatFloat(u.Coordinates.Longitude, 'f', -1, 64)
		params["display_coordinates"] = "true"
	}
	if len(u.MediaIDs) > 0 {
		params["media_ids"] = strings.Join(u.MediaIDs, ",")
	}
	return params
}

// UpdateStatus posts a new status, optionally with media and coordinates.
func (c *Client) UpdateStatus(ctx context.Context, update StatusUpdate) (*JSONResponse, error) {
	if update.Status == "" && len(update.MediaIDs) == 0 {
		return nil, errors.Validation("status update needs text or media")
	}
	return c.Post(ctx, resourceStatusesUpdate, update.parameters())
}

// DestroyStatus deletes the status with the given id.
func (c *Client) DestroyStatus(ctx context.Context, id string) (*JSONResponse, error) {
	if id == "" {
		return nil, errors.Validation("status id is empty")
	}
	return c.Post(ctx, resourceStatusesDestroy+"/"+url.PathEscape(id), nil)
}

// MediaUpload is a base64 encoded media payload.
type MediaUpload struct {
	Data string
	// Category defaults to DefaultMediaCategory.
	Category string
	// AdditionalOwners are user ids allowed to use the media besides the uploader.
	AdditionalOwners []string
}

func (m MediaUpload) parameters() map[string]string {
	category := m.Category
	if category == "" {
		category = DefaultMediaCategory
	}
	params := map[string]string{
		"media_data":     m.Data,
		"media_category": category,
	}
	if len(m.AdditionalOwners) > 0 {
		params["additional_owners"] = strings.Join(m.AdditionalOwners, ",")
	}
	return params
}

// UploadMedia uploads a base64 payload to the upload host. The media id of the
// response is what UpdateStatus expects in MediaIDs.
func (c *Client) UploadMedia(ctx context.Context, media MediaUpload) (*JSONResponse, error) {
	if media.Data == "" {
		return nil, errors.Validation("media payload is empty")
	}
	return c.Upload(ctx, resourceMediaUpload, media.parameters())
}
