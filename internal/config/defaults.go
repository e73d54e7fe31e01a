package config

func Defaults() *Config {
	return &Config{
		General: GeneralConfig{
			Workspace: "~/.wabulk/workspace",
			LogLevel:  "info",
		},
		Browser: BrowserConfig{
			ProfileDir: "~/.wabulk/chrome-profile",
			Headless:   false,
			URL:        "https://web.whatsapp.com",
		},
		Delivery: DeliveryConfig{
			CountryCode:          "91",
			NationalNumberLength: 10,
			IntervalSeconds:      10,
			ReleasePauseSeconds:  5,
			SessionSettleSeconds: 15,
			TextSettleSeconds:    10,
			MediaSettleSeconds:   15,
			ReadyTimeoutSeconds:  90,
			StepTimeoutSeconds:   120,
		},
		Attachment: AttachmentConfig{
			MaxImageMB: 16,
			MaxVideoMB: 100,
		},
		Contacts: ContactsConfig{
			NameColumn:  "Name",
			PhoneColumn: "Phone Number",
			SQLiteTable: "contacts",
		},
	}
}
