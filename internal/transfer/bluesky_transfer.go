package transfer

type BlueskyCredentials struct {
	Identifier  string `json:"identifier"`
	AppPassword string `json:"app_password"`
}

type BlueskySessionRequest struct {
	Identifier string `json:"identifier"`
	Password   string `json:"password"`
}

type BlueskySessionResponse struct {
	AccessJwt  string `json:"accessJwt"`
	RefreshJwt string `json:"refreshJwt"`
	Handle     string `json:"handle"`
	Did        string `json:"did"`
}

type BlueskyBlobResponse struct {
	Blob BlueskyBlob `json:"blob"`
}

type BlueskyBlob struct {
	Type     string         `json:"$type"`
	Ref      BlueskyBlobRef `json:"ref"`
	MimeType string         `json:"mimeType"`
	Size     int64          `json:"size"`
}

type BlueskyBlobRef struct {
	Link string `json:"$link"`
}

type BlueskyCreateRecordRequest struct {
	Repo       string        `json:"repo"`
	Collection string        `json:"collection"`
	Record     BlueskyRecord `json:"record"`
}

type BlueskyRecord struct {
	Type      string        `json:"$type"`
	Text      string        `json:"text"`
	CreatedAt string        `json:"createdAt"`
	Embed     *BlueskyEmbed `json:"embed,omitempty"`
}

type BlueskyEmbed struct {
	Type   string         `json:"$type"`
	Images []BlueskyImage `json:"images"`
}

type BlueskyImage struct {
	Alt   string      `json:"alt"`
	Image BlueskyBlob `json:"image"`
}

type BlueskyCreateRecordResponse struct {
	URI string `json:"uri"`
	Cid string `json:"cid"`
}

type BlueskyError struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}
