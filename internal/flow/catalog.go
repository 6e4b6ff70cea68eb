package flow

import "strings"

// Option is one selectable row of a catalog.
type Option struct {
	ID          string // stable short id ("3", "A", "facebook")
	Label       string // display label ("UPI Fraud")
	Description string // optional list-row description
}

// Catalog is a static enumerated set of selectable options.
type Catalog struct {
	Title   string
	Options []Option
}

// Match resolves user input against the catalog. The channel may deliver
// either a button/list id or its display title depending on the client
// version, so both are accepted: an exact id match first, then a
// case-insensitive substring match against the labels.
func (c Catalog) Match(input string) (Option, bool) {
	s := strings.TrimSpace(input)
	if s == "" {
		return Option{}, false
	}
	for _, o := range c.Options {
		if strings.EqualFold(o.ID, s) {
			return o, true
		}
	}
	low := strings.ToLower(s)
	for _, o := range c.Options {
		if strings.Contains(strings.ToLower(o.Label), low) {
			return o, true
		}
	}
	return Option{}, false
}

// MainMenu is the top-level menu. Option ids follow the helpline's
// published A–D scheme.
var MainMenu = Catalog{
	Title: "Main Menu",
	Options: []Option{
		{ID: "A", Label: "New Complaint", Description: "File a new cybercrime complaint"},
		{ID: "B", Label: "Check Complaint Status", Description: "Track an existing complaint"},
		{ID: "C", Label: "Account Unfreeze", Description: "Request unfreezing of a bank account"},
		{ID: "D", Label: "Other Queries", Description: "General questions and guidance"},
	},
}

// ComplaintCategories splits a new complaint into the two supported tracks.
var ComplaintCategories = Catalog{
	Title: "Complaint Category",
	Options: []Option{
		{ID: "1", Label: "Financial Fraud"},
		{ID: "2", Label: "Social Media Fraud"},
	},
}

// FinancialTypes lists the 23 recognized financial fraud types.
var FinancialTypes = Catalog{
	Title: "Financial Fraud Type",
	Options: []Option{
		{ID: "1", Label: "Investment/Trading/IPO Fraud"},
		{ID: "2", Label: "Customer Care Fraud"},
		{ID: "3", Label: "UPI Fraud"},
		{ID: "4", Label: "APK Fraud"},
		{ID: "5", Label: "Fake Franchisee/Dealership Fraud"},
		{ID: "6", Label: "Online Job Fraud"},
		{ID: "7", Label: "Debit Card Fraud"},
		{ID: "8", Label: "Credit Card Fraud"},
		{ID: "9", Label: "E-Commerce Fraud"},
		{ID: "10", Label: "Loan App Fraud"},
		{ID: "11", Label: "Sextortion Fraud"},
		{ID: "12", Label: "OLX Fraud"},
		{ID: "13", Label: "Lottery Fraud"},
		{ID: "14", Label: "Hotel Booking Fraud"},
		{ID: "15", Label: "Gaming App Fraud"},
		{ID: "16", Label: "AEPS Fraud"},
		{ID: "17", Label: "Tower Installation Fraud"},
		{ID: "18", Label: "E-Wallet Fraud"},
		{ID: "19", Label: "Digital Arrest Fraud"},
		{ID: "20", Label: "Fake Website Scam Fraud"},
		{ID: "21", Label: "Ticket Booking Fraud"},
		{ID: "22", Label: "Insurance Maturity Fraud"},
		{ID: "23", Label: "Others"},
	},
}

// SocialPlatforms lists the platforms with a grievance channel.
var SocialPlatforms = Catalog{
	Title: "Platform",
	Options: []Option{
		{ID: "facebook", Label: "Facebook", Description: "Meta India Grievance Channel"},
		{ID: "instagram", Label: "Instagram", Description: "Meta India Grievance Channel"},
		{ID: "x", Label: "X (Twitter)", Description: "X India Grievance Channel"},
		{ID: "whatsapp", Label: "WhatsApp", Description: "WhatsApp India Grievance Channel"},
		{ID: "telegram", Label: "Telegram", Description: "Telegram India Grievance Channel"},
		{ID: "gmail_youtube", Label: "Gmail/YouTube", Description: "Google Recovery"},
		{ID: "fraud_call_sms", Label: "Fraud Call/SMS", Description: "Sanchar Saathi"},
	},
}

// socialSubtypes maps a platform id to its issue catalog. Sizes vary per
// platform (2–4 options).
var socialSubtypes = map[string]Catalog{
	"facebook":  fullSubtypeCatalog,
	"instagram": fullSubtypeCatalog,
	"x":         fullSubtypeCatalog,
	"telegram":  fullSubtypeCatalog,
	"whatsapp": {
		Title: "Issue Type",
		Options: []Option{
			{ID: "impersonation", Label: "Impersonation"},
			{ID: "fake_account", Label: "Fake Account"},
			{ID: "hack", Label: "Hacked Account", Description: "Includes call forwarding removal"},
		},
	},
	"gmail_youtube": {
		Title: "Issue Type",
		Options: []Option{
			{ID: "impersonation", Label: "Impersonation"},
			{ID: "hack", Label: "Hacked Account"},
			{ID: "obscene_content", Label: "Obscene Content"},
		},
	},
	"fraud_call_sms": {
		Title: "Issue Type",
		Options: []Option{
			{ID: "fraud_call", Label: "Fraud Call"},
			{ID: "fraud_sms", Label: "Fraud SMS"},
		},
	},
}

var fullSubtypeCatalog = Catalog{
	Title: "Issue Type",
	Options: []Option{
		{ID: "impersonation", Label: "Impersonation"},
		{ID: "fake_account", Label: "Fake Account"},
		{ID: "hack", Label: "Hacked Account"},
		{ID: "obscene_content", Label: "Obscene Content"},
	},
}

// SocialSubtypes returns the issue catalog for a platform id.
func SocialSubtypes(platformID string) (Catalog, bool) {
	c, ok := socialSubtypes[platformID]
	return c, ok
}
