package transfer

import "time"

type InstagramToken struct {
	AccessToken string    `json:"access_token"`
	LongLived   bool      `json:"long_lived"`
	ExpiresAt   time.Time `json:"expires_at"`
}

type InstagramPage struct {
	ID              string `json:"id"`
	Name            string `json:"name"`
	BusinessAccount *struct {
		ID       string `json:"id"`
		Username string `json:"username"`
		Name     string `json:"name"`
	} `json:"instagram_business_account"`
}

type InstagramPageList struct {
	Data []InstagramPage `json:"data"`
}

type InstagramErrorResponse struct {
	Error struct {
		Message      string `json:"message"`
		Type         string `json:"type"`
		Code         int    `json:"code"`
		ErrorSubcode int    `json:"error_subcode"`
	} `json:"error"`
}
