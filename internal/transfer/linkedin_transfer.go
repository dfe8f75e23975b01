package transfer

import "time"

type LinkedinCredentials struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	ExpiresAt    time.Time `json:"expires_at"`
	Sub          string    `json:"sub"`
}

type LinkedinUserInfo struct {
	Sub     string `json:"sub"`
	Name    string `json:"name"`
	Email   string `json:"email"`
	Picture string `json:"picture"`
}

type LinkedinRegisterUploadRequest struct {
	RegisterUploadRequest LinkedinRegisterUpload `json:"registerUploadRequest"`
}

type LinkedinRegisterUpload struct {
	Recipes              []string                  `json:"recipes"`
	Owner                string                    `json:"owner"`
	ServiceRelationships []LinkedinServiceRelation `json:"serviceRelationships"`
}

type LinkedinServiceRelation struct {
	RelationshipType string `json:"relationshipType"`
	Identifier       string `json:"identifier"`
}

type LinkedinRegisterUploadResponse struct {
	Value LinkedinUploadValue `json:"value"`
}

type LinkedinUploadValue struct {
	Asset           string                  `json:"asset"`
	UploadMechanism LinkedinUploadMechanism `json:"uploadMechanism"`
}

type LinkedinUploadMechanism struct {
	MediaUploadHTTPRequest LinkedinMediaUploadRequest `json:"com.linkedin.digitalmedia.uploading.MediaUploadHttpRequest"`
}

type LinkedinMediaUploadRequest struct {
	UploadURL string `json:"uploadUrl"`
}

type LinkedinShareRequest struct {
	Author          string                  `json:"author"`
	LifecycleState  string                  `json:"lifecycleState"`
	SpecificContent LinkedinSpecificContent `json:"specificContent"`
	Visibility      LinkedinVisibility      `json:"visibility"`
}

type LinkedinSpecificContent struct {
	ShareContent LinkedinShareContent `json:"com.linkedin.ugc.ShareContent"`
}

type LinkedinShareContent struct {
	ShareCommentary    LinkedinText         `json:"shareCommentary"`
	ShareMediaCategory string               `json:"shareMediaCategory"`
	Media              []LinkedinShareMedia `json:"media,omitempty"`
}

type LinkedinText struct {
	Text string `json:"text"`
}

type LinkedinShareMedia struct {
	Status string        `json:"status"`
	Media  string        `json:"media"`
	Title  *LinkedinText `json:"title,omitempty"`
}

type LinkedinVisibility struct {
	MemberNetworkVisibility string `json:"com.linkedin.ugc.MemberNetworkVisibility"`
}

type LinkedinShareResponse struct {
	ID string `json:"id"`
}

type LinkedinError struct {
	Message          string `json:"message"`
	ServiceErrorCode int    `json:"serviceErrorCode"`
	Status           int    `json:"status"`
}
